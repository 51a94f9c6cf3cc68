package nuclide

import "math"

// StaticMassTable is an in-memory MassTable seeded with the handful of
// actinides and fission products the bundled archetypes and tests exercise.
// It is the default table cmd/fuelsim wires in when no external nuclear-data
// provider is configured; a real deployment supplies its own MassTable
// backed by the out-of-scope HDF5 table (spec.md §6).
type StaticMassTable struct {
	mass    map[ID]float64
	halfLif map[ID]float64
	decay   map[ID][]DecayChild
}

// NewStaticMassTable returns an empty table; use Add/AddDecay to seed it.
func NewStaticMassTable() *StaticMassTable {
	return &StaticMassTable{
		mass:    make(map[ID]float64),
		halfLif: make(map[ID]float64),
		decay:   make(map[ID][]DecayChild),
	}
}

// Add registers the atomic mass (g/mol) and half-life (seconds, Inf if
// stable) for a nuclide.
func (t *StaticMassTable) Add(id ID, gramsPerMol, halfLifeSec float64) {
	t.mass[id] = gramsPerMol
	t.halfLif[id] = halfLifeSec
}

// AddDecay registers the decay daughters (and branch fractions) of id.
func (t *StaticMassTable) AddDecay(id ID, children ...DecayChild) {
	t.decay[id] = children
}

func (t *StaticMassTable) AtomicMass(id ID) (float64, error) {
	if m, ok := t.mass[id]; ok {
		return m, nil
	}
	// Fall back to the mass number itself: a reasonable approximation
	// (amu ≈ A) for nuclides the table was never seeded with.
	return float64(id.A()), nil
}

func (t *StaticMassTable) HalfLife(id ID) (float64, error) {
	if h, ok := t.halfLif[id]; ok {
		return h, nil
	}
	return math.Inf(1), nil
}

func (t *StaticMassTable) DecayChildren(id ID) ([]DecayChild, error) {
	return t.decay[id], nil
}

// DefaultTable returns a StaticMassTable seeded with common fuel-cycle
// nuclides: natural/enriched uranium isotopes (treated as effectively
// stable on simulation timescales) plus a short Pu-241/Am-241 decay chain
// used by the decay tests.
func DefaultTable() *StaticMassTable {
	t := NewStaticMassTable()
	mustID := func(sym string, a int) ID {
		id, err := FromElemMass(sym, a)
		if err != nil {
			panic(err)
		}
		return id
	}

	u234 := mustID("U", 234)
	u235 := mustID("U", 235)
	u236 := mustID("U", 236)
	u238 := mustID("U", 238)
	t.Add(u234, 234.0409, 2.455e12*365.25*86400)
	t.Add(u235, 235.0439, 7.04e8*365.25*86400)
	t.Add(u236, 236.0456, 2.342e7*365.25*86400)
	t.Add(u238, 238.0508, 4.468e9*365.25*86400)

	pu239 := mustID("Pu", 239)
	pu240 := mustID("Pu", 240)
	pu241 := mustID("Pu", 241)
	am241 := mustID("Am", 241)
	np237 := mustID("Np", 237)
	t.Add(pu239, 239.0521, 24110*365.25*86400)
	t.Add(pu240, 240.0538, 6561*365.25*86400)
	t.Add(pu241, 241.0568, 14.33*365.25*86400)
	t.Add(am241, 241.0568, 432.2*365.25*86400)
	t.Add(np237, 237.0480, 2.144e6*365.25*86400)

	// Pu-241 -> Am-241 (beta decay, branch 1.0); Am-241 -> Np-237 (alpha, 1.0).
	t.AddDecay(pu241, DecayChild{Child: am241, BranchFrac: 1.0})
	t.AddDecay(am241, DecayChild{Child: np237, BranchFrac: 1.0})

	return t
}
