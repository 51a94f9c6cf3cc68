package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/resource"
)

func newMat(t *testing.T, f *resource.MaterialFactory, qty float64) *resource.Material {
	t.Helper()
	u235, _ := nuclide.FromElemMass("U", 235)
	u238, _ := nuclide.FromElemMass("U", 238)
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: 0.007, u238: 0.993}, f.MT)
	require.NoError(t, err)
	m, err := f.Create(1, qty, comp, 0)
	require.NoError(t, err)
	return m
}

func factory(t *testing.T) *resource.MaterialFactory {
	t.Helper()
	mt := nuclide.DefaultTable()
	return &resource.MaterialFactory{Reg: resource.NewRegistry(), MT: mt, Arena: composition.NewArena(decay.NewSolver(), mt)}
}

func TestPushOverCapacityFails(t *testing.T) {
	f := factory(t)
	b := New(5.0)
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 4))))
	require.Error(t, b.Push(WrapMaterial(newMat(t, f, 2))))
}

func TestPopQtySplitsHead(t *testing.T) {
	f := factory(t)
	b := New(100)
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 10))))
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 10))))

	popped, err := b.PopQty(15)
	require.NoError(t, err)
	require.Len(t, popped, 2)
	require.InDelta(t, 10, popped[0].Quantity(), 1e-9)
	require.InDelta(t, 5, popped[1].Quantity(), 1e-9)
	require.InDelta(t, 5, b.Quantity(), 1e-9)
}

func TestPopOrderMatchesPushOrder(t *testing.T) {
	f := factory(t)
	b := New(100)
	m1 := newMat(t, f, 1)
	m2 := newMat(t, f, 2)
	require.NoError(t, b.Push(WrapMaterial(m1)))
	require.NoError(t, b.Push(WrapMaterial(m2)))

	popped, err := b.PopN(2)
	require.NoError(t, err)
	require.Equal(t, m1.ID(), popped[0].ID())
	require.Equal(t, m2.ID(), popped[1].ID())
}

func TestSquashSumsQuantity(t *testing.T) {
	f := factory(t)
	b := New(100)
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 4))))
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 6))))

	squashed, err := b.Squash()
	require.NoError(t, err)
	require.InDelta(t, 10, squashed.Quantity(), 1e-9)
	require.Equal(t, 1, b.Count())
}

func TestSetCapacityBelowQuantityFails(t *testing.T) {
	f := factory(t)
	b := New(100)
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 10))))
	require.Error(t, b.SetCapacity(5))
	require.NoError(t, b.SetCapacity(10))
}

func TestCombineMergesPoppedPieces(t *testing.T) {
	f := factory(t)
	b := New(100)
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 10))))
	require.NoError(t, b.Push(WrapMaterial(newMat(t, f, 10))))

	popped, err := b.PopQty(15)
	require.NoError(t, err)
	combined, err := Combine(popped)
	require.NoError(t, err)
	require.InDelta(t, 15, combined.Quantity(), 1e-9)
}
