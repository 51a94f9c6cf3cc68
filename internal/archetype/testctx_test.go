package archetype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
	"github.com/cyclus/fuelsim/internal/resource"
)

func newTestContext(t *testing.T) *engine.Context {
	t.Helper()
	mt := nuclide.DefaultTable()
	arena := composition.NewArena(decay.NewSolver(), mt)
	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	timer, err := engine.NewTimer(3)
	require.NoError(t, err)
	return engine.New(timer, rec, mt, arena, resource.NewRegistry())
}

func natU(t *testing.T, mt nuclide.MassTable) *composition.Composition {
	t.Helper()
	u235, err := nuclide.FromElemMass("U", 235)
	require.NoError(t, err)
	u238, err := nuclide.FromElemMass("U", 238)
	require.NoError(t, err)
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: 0.00711, u238: 0.99289}, mt)
	require.NoError(t, err)
	return comp
}

var idCounter engid.Counter

func nextID() engid.ID { return idCounter.Next() }
