// Package composition implements the immutable, normalized isotopic vector
// (spec.md C2, §4.1) with structural sharing of its decay lineage.
//
// The original C++ implementation modeled this with reference-counted
// shared pointers and enable_shared_from_this, which produces reference
// cycles between a composition and its decayed children. Per spec.md §9
// ("Cyclic parent/child sharing for compositions"), this package instead
// models compositions as immutable values addressed by an id minted from an
// Arena; the Arena owns lifetime and the lineage is a DAG keyed by
// (root id, elapsed time from root), not a pointer graph.
package composition

import (
	"sort"

	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
)

const tolerance = 1e-6

// Composition is an immutable normalized isotopic vector, held in both mass
// and atom fraction bases. The zero value is not useful; build one with
// CreateFromMass or CreateFromAtom.
type Composition struct {
	id        engid.ID // RecipeID/QualID: zero until Record'd
	rootID    engid.ID // zero until Record'd; equals id for a lineage root
	parentID  engid.ID // zero for a lineage root
	elapsed   float64  // seconds since rootID at elapsed=0
	massFrac  map[nuclide.ID]float64
	atomFrac  map[nuclide.ID]float64
	massAtoms float64 // cached mass-to-atom ratio (g per mole of the mix)
}

// ID returns the persistent id assigned on first Record, or zero if this
// Composition has never been recorded.
func (c *Composition) ID() engid.ID { return c.id }

// ParentID returns the lineage parent's id, or zero if this is a root or
// has never been recorded.
func (c *Composition) ParentID() engid.ID { return c.parentID }

// DecayTime returns the elapsed seconds since the lineage root.
func (c *Composition) DecayTime() float64 { return c.elapsed }

// Mass returns the normalized mass-fraction map. The returned map must not
// be mutated by the caller; Composition is immutable.
func (c *Composition) Mass() map[nuclide.ID]float64 { return c.massFrac }

// Atom returns the normalized atom-fraction map.
func (c *Composition) Atom() map[nuclide.ID]float64 { return c.atomFrac }

// MassFrac returns the mass fraction of a single nuclide (0 if absent).
func (c *Composition) MassFrac(id nuclide.ID) float64 { return c.massFrac[id] }

// Nuclides returns the composition's nuclide ids in ascending order, for
// deterministic iteration (e.g. when emitting Composition rows).
func (c *Composition) Nuclides() []nuclide.ID {
	ids := make([]nuclide.ID, 0, len(c.massFrac))
	for id := range c.massFrac {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CreateFromMass builds a Composition from mass fractions (need not be
// pre-normalized; negative or out-of-range values are rejected). The atom
// basis is derived using mt.AtomicMass.
func CreateFromMass(massFrac map[nuclide.ID]float64, mt nuclide.MassTable) (*Composition, error) {
	if err := validateFracs(massFrac); err != nil {
		return nil, err
	}
	normMass := normalize(massFrac)
	atomUnnorm := make(map[nuclide.ID]float64, len(normMass))
	for id, frac := range normMass {
		amu, err := mt.AtomicMass(id)
		if err != nil {
			return nil, err
		}
		if amu <= 0 {
			return nil, engineerr.Value("composition: non-positive atomic mass for %s", id)
		}
		atomUnnorm[id] = frac / amu
	}
	return &Composition{
		massFrac:  normMass,
		atomFrac:  normalize(atomUnnorm),
		massAtoms: massAtomRatio(normMass, mt),
	}, nil
}

// CreateFromAtom builds a Composition from atom fractions; the mass basis
// is derived using mt.AtomicMass.
func CreateFromAtom(atomFrac map[nuclide.ID]float64, mt nuclide.MassTable) (*Composition, error) {
	if err := validateFracs(atomFrac); err != nil {
		return nil, err
	}
	normAtom := normalize(atomFrac)
	massUnnorm := make(map[nuclide.ID]float64, len(normAtom))
	for id, frac := range normAtom {
		amu, err := mt.AtomicMass(id)
		if err != nil {
			return nil, err
		}
		massUnnorm[id] = frac * amu
	}
	normMass := normalize(massUnnorm)
	return &Composition{
		massFrac:  normMass,
		atomFrac:  normAtom,
		massAtoms: massAtomRatio(normMass, mt),
	}, nil
}

func validateFracs(fracs map[nuclide.ID]float64) error {
	if len(fracs) == 0 {
		return engineerr.Value("composition: empty fraction map")
	}
	for id, f := range fracs {
		if f < -tolerance {
			return engineerr.Value("composition: negative fraction %.6g for %s", f, id)
		}
		if id.Z() <= 0 {
			return engineerr.Value("composition: invalid nuclide id %d", int64(id))
		}
	}
	return nil
}

func normalize(fracs map[nuclide.ID]float64) map[nuclide.ID]float64 {
	var sum float64
	for _, f := range fracs {
		sum += f
	}
	out := make(map[nuclide.ID]float64, len(fracs))
	if sum <= 0 {
		return out
	}
	for id, f := range fracs {
		if f <= 0 {
			continue
		}
		out[id] = f / sum
	}
	return out
}

func massAtomRatio(massFrac map[nuclide.ID]float64, mt nuclide.MassTable) float64 {
	var perMole float64
	for id, frac := range massFrac {
		amu, err := mt.AtomicMass(id)
		if err != nil || amu <= 0 {
			continue
		}
		perMole += frac / amu
	}
	if perMole == 0 {
		return 0
	}
	return 1 / perMole
}

// SumMass returns the sum of the mass-fraction map, which should equal 1
// within tolerance for any Composition constructed by this package (spec.md
// §8 invariant).
func (c *Composition) SumMass() float64 { return sumOf(c.massFrac) }

// SumAtom returns the sum of the atom-fraction map.
func (c *Composition) SumAtom() float64 { return sumOf(c.atomFrac) }

func sumOf(m map[nuclide.ID]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

// Mix combines this composition with other at the given mass weights,
// returning a new, unrecorded Composition whose mass fractions are the
// weighted average (used by resource.Material.Absorb and buffer.Squash).
func Mix(a *Composition, massA float64, b *Composition, massB float64, mt nuclide.MassTable) (*Composition, error) {
	total := massA + massB
	if total <= 0 {
		return nil, engineerr.Value("composition: cannot mix zero total mass")
	}
	mixed := make(map[nuclide.ID]float64)
	for id, f := range a.massFrac {
		mixed[id] += f * massA
	}
	for id, f := range b.massFrac {
		mixed[id] += f * massB
	}
	for id := range mixed {
		mixed[id] /= total
	}
	return CreateFromMass(mixed, mt)
}
