package resource

import (
	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
)

// Material is a Resource whose quantity is mass in kilograms and which
// carries an isotopic Composition (spec.md §4.2).
type Material struct {
	ids
	qty       float64
	comp      *composition.Composition
	lastDecay float64 // simulation time (seconds) composition was last decayed
	reg       *Registry
	mt        nuclide.MassTable
	arena     *composition.Arena
	decayIvl  float64        // seconds; <=0 disables decay
	now       func() float64 // nil disables lazy decay-on-access
}

// CreateUntracked returns a Material that has not been recorded: used for
// exemplars (DRE request/bid targets) and tests. It has a zero ID/ObjID.
func CreateUntracked(qty float64, comp *composition.Composition) (*Material, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	return &Material{qty: qty, comp: comp}, nil
}

// MaterialFactory builds recorded Materials wired to a Registry, nuclide
// mass table, decay Arena, and the context's recorder.
type MaterialFactory struct {
	Reg      *Registry
	MT       nuclide.MassTable
	Arena    *composition.Arena
	DecayIvl float64
	Now      func() float64 // nil disables lazy decay-on-access
	Rec      *record.Recorder
}

// Create records the resource's creation (spec.md "Create(creator_agent,
// qty, comp)"): assigns a fresh id/objID, emits a Resource row, and emits a
// Composition row if comp has not been seen before.
func (f *MaterialFactory) Create(creatorAgent engid.ID, qty float64, comp *composition.Composition, simTime int64) (*Material, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	id := f.Reg.nextID()
	m := &Material{
		ids:      ids{id: id, objID: id, stateID: f.Reg.nextState()},
		qty:      qty,
		comp:     comp,
		reg:      f.Reg,
		mt:       f.MT,
		arena:    f.Arena,
		decayIvl: f.DecayIvl,
		now:      f.Now,
	}
	recorded, isNew := f.Arena.Record(comp)
	m.comp = recorded
	if f.Rec != nil {
		if isNew {
			emitComposition(f.Rec, recorded)
		}
		emitResource(f.Rec, m, creatorAgent, simTime)
	}
	return m, nil
}

func emitResource(rec *record.Recorder, m *Material, creatorAgent engid.ID, simTime int64) {
	rec.NewDatum("Resources").
		AddVal("ResourceId", int64(m.id)).
		AddVal("ObjId", int64(m.objID)).
		AddVal("Type", TypeMaterial.String()).
		AddVal("TimeCreated", simTime).
		AddVal("Quantity", m.qty).
		AddVal("Units", m.Units()).
		AddVal("QualId", int64(m.comp.ID())).
		AddVal("CreatorAgentId", int64(creatorAgent)).
		Record()
}

func emitComposition(rec *record.Recorder, c *composition.Composition) {
	for _, nucID := range c.Nuclides() {
		rec.NewDatum("Compositions").
			AddVal("QualId", int64(c.ID())).
			AddVal("NucId", int64(nucID)).
			AddVal("MassFrac", c.MassFrac(nucID)).
			Record()
	}
}

func (m *Material) Kind() Type       { return TypeMaterial }
func (m *Material) Units() string    { return "kg" }
func (m *Material) Quantity() float64 { return m.qty }

// Composition returns the material's current Composition, decaying it
// first if decayIvl seconds have elapsed since the last decay (spec.md
// §4.1's "decay is invoked lazily on Material access").
func (m *Material) Composition() *composition.Composition {
	m.maybeDecay()
	return m.comp
}

// maybeDecay runs the lazy decay-on-access check; it is a no-op if the
// Material was not built with a clock (Now) to consult.
func (m *Material) maybeDecay() {
	if m.now == nil {
		return
	}
	m.Decay(m.now())
}

// ExtractQty removes q kilograms from m, returning a new Material sharing
// m's ObjID with m's composition and the given q. On q > quantity, fails
// with ValueError (spec.md §4.2).
func (m *Material) ExtractQty(q float64) (*Material, error) {
	m.maybeDecay()
	if q < -qtyTolerance || q > m.qty+qtyTolerance {
		return nil, engineerr.Value("material: cannot extract %.6g from %.6g", q, m.qty)
	}
	q = clampNonNegative(q, m.qty)
	m.qty -= q
	m.advanceState()
	out := &Material{
		ids:      ids{id: m.reg.nextID(), objID: m.objID, stateID: m.reg.nextState()},
		qty:      q,
		comp:     m.comp,
		reg:      m.reg,
		mt:       m.mt,
		arena:    m.arena,
		decayIvl: m.decayIvl,
		now:      m.now,
	}
	return out, nil
}

// ExtractComp removes q kg of the named composition from m, succeeding
// only when m contains at least q*threshold's worth of every constituent
// of target (spec.md §4.2).
func (m *Material) ExtractComp(q float64, target *composition.Composition, threshold float64) (*Material, error) {
	m.maybeDecay()
	if q < 0 || q > m.qty+qtyTolerance {
		return nil, engineerr.Value("material: cannot extract %.6g from %.6g", q, m.qty)
	}
	for _, nucID := range target.Nuclides() {
		wantMass := q * target.MassFrac(nucID)
		haveMass := m.qty * m.comp.MassFrac(nucID)
		if haveMass+threshold < wantMass {
			return nil, engineerr.Value("material: insufficient %s to extract target composition", nucID)
		}
	}
	q = clampNonNegative(q, m.qty)
	m.qty -= q
	m.advanceState()
	return &Material{
		ids:      ids{id: m.reg.nextID(), objID: m.objID, stateID: m.reg.nextState()},
		qty:      q,
		comp:     target,
		reg:      m.reg,
		mt:       m.mt,
		arena:    m.arena,
		decayIvl: m.decayIvl,
		now:      m.now,
	}, nil
}

// Absorb merges other into m: m's composition becomes the mass-weighted
// mix, m's quantity increases by other's, and other's quantity becomes
// zero (spec.md §4.2).
func (m *Material) Absorb(other *Material) error {
	if other.qty == 0 {
		return nil
	}
	m.maybeDecay()
	other.maybeDecay()
	mixed, err := composition.Mix(m.comp, m.qty, other.comp, other.qty, m.mt)
	if err != nil {
		return err
	}
	m.qty += other.qty
	other.qty = 0
	m.comp = mixed
	m.advanceState()
	other.advanceState()
	return nil
}

// Decay replaces m's composition with composition.Decay(Δt) if at least
// decayIvl seconds have elapsed since the last decay; otherwise it is a
// no-op. decayIvl <= 0 disables decay entirely (spec.md §4.2).
func (m *Material) Decay(currTime float64) error {
	if m.decayIvl <= 0 {
		return nil
	}
	dt := currTime - m.lastDecay
	if dt < m.decayIvl {
		return nil
	}
	decayed, err := m.arena.Decay(m.comp, dt)
	if err != nil {
		return err
	}
	m.comp = decayed
	m.lastDecay = currTime
	m.advanceState()
	return nil
}

// Transmute replaces m's composition without changing its quantity; used
// by reactor-like archetypes (spec.md §4.2).
func (m *Material) Transmute(newComp *composition.Composition) {
	m.comp = newComp
	m.advanceState()
}

func (m *Material) advanceState() {
	if m.reg != nil {
		m.stateID = m.reg.nextState()
	}
}

func clampNonNegative(q, max float64) float64 {
	if q < 0 {
		return 0
	}
	if q > max {
		return max
	}
	return q
}
