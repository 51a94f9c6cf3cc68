package composition

import (
	"sync"

	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/nuclide"
)

// Decayer evolves a set of mass fractions forward by dt seconds. decay.Solver
// (C3) is the production implementation; tests may supply a stub.
type Decayer interface {
	Decay(massFrac map[nuclide.ID]float64, dt float64, mt nuclide.MassTable) (map[nuclide.ID]float64, error)
}

type lineageKey struct {
	root    engid.ID
	elapsed float64
}

// Arena owns the lifetime of recorded Compositions and the decay-lineage
// index described in spec.md §4.1's caching rule. The simulation keeps a
// single Arena for its duration; it is not safe to share across runs.
type Arena struct {
	mu      sync.Mutex
	counter engid.Counter
	byID    map[engid.ID]*Composition
	lineage map[lineageKey]*Composition
	decayer Decayer
	mt      nuclide.MassTable
}

// NewArena builds an Arena backed by the given decay solver and nuclide mass
// table.
func NewArena(decayer Decayer, mt nuclide.MassTable) *Arena {
	return &Arena{
		byID:    make(map[engid.ID]*Composition),
		lineage: make(map[lineageKey]*Composition),
		decayer: decayer,
		mt:      mt,
	}
}

// Record assigns a persistent id to c if it does not already have one and
// indexes it for decay-lineage lookups. Calling Record on an
// already-recorded Composition is a no-op and returns it unchanged. Returns
// whether this call actually assigned a fresh id (callers use this to
// decide whether to emit a Compositions row).
func (a *Arena) Record(c *Composition) (recorded *Composition, isNew bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !c.id.IsZero() {
		return c, false
	}
	id := a.counter.Next()
	c.id = id
	if c.parentID.IsZero() {
		c.rootID = id
	}
	a.byID[id] = c
	a.lineage[lineageKey{root: c.rootID, elapsed: c.elapsed}] = c
	return c, true
}

// Get looks up a recorded Composition by id.
func (a *Arena) Get(id engid.ID) (*Composition, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.byID[id]
	return c, ok
}

// Decay returns the Composition that results from evolving c forward by dt
// seconds, reusing a lineage node when one already exists at the same total
// elapsed time from c's root (spec.md §4.1's caching rule). If c has never
// been recorded, the result is computed fresh and left unrecorded: there is
// no root to index it against.
func (a *Arena) Decay(c *Composition, dt float64) (*Composition, error) {
	if dt <= 0 {
		return c, nil
	}
	if c.id.IsZero() {
		return a.computeDecay(c, c.parentID, c.rootID, c.elapsed+dt)
	}

	target := lineageKey{root: c.rootID, elapsed: c.elapsed + dt}
	a.mu.Lock()
	if cached, ok := a.lineage[target]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	decayed, err := a.computeDecay(c, c.id, c.rootID, c.elapsed+dt)
	if err != nil {
		return nil, err
	}
	a.Record(decayed)
	return decayed, nil
}

func (a *Arena) computeDecay(c *Composition, parentID, rootID engid.ID, elapsed float64) (*Composition, error) {
	newMass, err := a.decayer.Decay(c.massFrac, elapsed-c.elapsed, a.mt)
	if err != nil {
		return nil, err
	}
	decayed, err := CreateFromMass(newMass, a.mt)
	if err != nil {
		return nil, err
	}
	decayed.parentID = parentID
	decayed.rootID = rootID
	decayed.elapsed = elapsed
	return decayed, nil
}
