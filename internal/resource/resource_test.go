package resource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
)

func natu(t *testing.T, mt nuclide.MassTable) *composition.Composition {
	t.Helper()
	u235, _ := nuclide.FromElemMass("U", 235)
	u238, _ := nuclide.FromElemMass("U", 238)
	c, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: 0.007, u238: 0.993}, mt)
	require.NoError(t, err)
	return c
}

func newFactory(t *testing.T) (*MaterialFactory, *record.Recorder) {
	t.Helper()
	mt := nuclide.DefaultTable()
	arena := composition.NewArena(decay.NewSolver(), mt)
	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	return &MaterialFactory{Reg: NewRegistry(), MT: mt, Arena: arena, Rec: rec}, rec
}

func TestExtractQtyConservesMass(t *testing.T) {
	f, _ := newFactory(t)
	comp := natu(t, f.MT)
	m, err := f.Create(1, 10.0, comp, 0)
	require.NoError(t, err)

	piece, err := m.ExtractQty(4.0)
	require.NoError(t, err)
	require.InDelta(t, 6.0, m.Quantity(), 1e-12)
	require.InDelta(t, 4.0, piece.Quantity(), 1e-12)
	require.Equal(t, m.ObjID(), piece.ObjID())
}

func TestExtractQtyOverQuantityFails(t *testing.T) {
	f, _ := newFactory(t)
	comp := natu(t, f.MT)
	m, err := f.Create(1, 5.0, comp, 0)
	require.NoError(t, err)
	_, err = m.ExtractQty(5.1)
	require.Error(t, err)
}

func TestAbsorbZeroesSourceAndMixes(t *testing.T) {
	f, _ := newFactory(t)
	comp := natu(t, f.MT)
	pureU238, err := composition.CreateFromMass(map[nuclide.ID]float64{mustU238(t): 1.0}, f.MT)
	require.NoError(t, err)

	a, err := f.Create(1, 5.0, comp, 0)
	require.NoError(t, err)
	b, err := f.Create(1, 5.0, pureU238, 0)
	require.NoError(t, err)

	require.NoError(t, a.Absorb(b))
	require.InDelta(t, 10.0, a.Quantity(), 1e-12)
	require.InDelta(t, 0.0, b.Quantity(), 1e-12)
	require.InDelta(t, 0.0035, a.Composition().MassFrac(mustU235(t)), 1e-9)
}

func mustU235(t *testing.T) nuclide.ID {
	id, err := nuclide.FromElemMass("U", 235)
	require.NoError(t, err)
	return id
}

func mustU238(t *testing.T) nuclide.ID {
	id, err := nuclide.FromElemMass("U", 238)
	require.NoError(t, err)
	return id
}

func TestCompositionAccessTriggersLazyDecay(t *testing.T) {
	f, _ := newFactory(t)
	u238 := mustU238(t)
	pu241, err := nuclide.FromElemMass("Pu", 241)
	require.NoError(t, err)
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{u238: 0.5, pu241: 0.5}, f.MT)
	require.NoError(t, err)

	clock := 0.0
	f.DecayIvl = 10.0
	f.Now = func() float64 { return clock }

	m, err := f.Create(1, 1.0, comp, 0)
	require.NoError(t, err)
	before := m.Composition().MassFrac(pu241)

	clock = 100.0
	after := m.Composition().MassFrac(pu241)
	require.Less(t, after, before, "Pu241 should have decayed away after the clock advances past decay_interval")
}

func TestCompositionAccessBelowIntervalIsNoOp(t *testing.T) {
	f, _ := newFactory(t)
	comp := natu(t, f.MT)

	clock := 0.0
	f.DecayIvl = 1000.0
	f.Now = func() float64 { return clock }

	m, err := f.Create(1, 1.0, comp, 0)
	require.NoError(t, err)
	before := m.Composition()

	clock = 1.0
	require.Same(t, before, m.Composition(), "access before decay_interval elapses must not decay")
}

func TestProductAbsorbRejectsMismatchedQuality(t *testing.T) {
	reg := NewRegistry()
	pf := &ProductFactory{Reg: reg}
	a, err := pf.Create(1, 3, "grade-a", 0)
	require.NoError(t, err)
	b, err := pf.Create(1, 2, "grade-b", 0)
	require.NoError(t, err)
	require.Error(t, a.Absorb(b))
}
