package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
	"github.com/cyclus/fuelsim/internal/resource"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	mt := nuclide.DefaultTable()
	arena := composition.NewArena(decay.NewSolver(), mt)
	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	timer, err := NewTimer(10)
	require.NoError(t, err)
	return New(timer, rec, mt, arena, resource.NewRegistry())
}

func TestRecipeLookupUnknownFails(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Recipe("natu")
	require.Error(t, err)
}

func TestRecipeRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	u235, _ := nuclide.FromElemMass("U", 235)
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: 1.0}, ctx.MassTable())
	require.NoError(t, err)
	ctx.AddRecipe("weapons-grade", comp)

	got, err := ctx.Recipe("weapons-grade")
	require.NoError(t, err)
	require.Equal(t, comp, got)
}

func TestPrototypeLookupUnknownFails(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Prototype("reactor-a")
	require.Error(t, err)
}

func TestBuildQueueDrainsOnlyDue(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ScheduleBuild(BuildOrder{Proto: "sink", When: 2})
	ctx.ScheduleBuild(BuildOrder{Proto: "source", When: 5})

	due := ctx.DrainBuilds(3)
	require.Len(t, due, 1)
	require.Equal(t, "sink", due[0].Proto)

	due = ctx.DrainBuilds(5)
	require.Len(t, due, 1)
	require.Equal(t, "source", due[0].Proto)

	require.Empty(t, ctx.DrainBuilds(100))
}

func TestRunningSetTracksMembership(t *testing.T) {
	ctx := newTestContext(t)
	id := ctx.NextAgentID()
	require.False(t, ctx.IsRunning(id))
	ctx.MarkRunning(id)
	require.True(t, ctx.IsRunning(id))
	require.Equal(t, 1, ctx.RunningCount())
	ctx.MarkStopped(id)
	require.False(t, ctx.IsRunning(id))
}

func TestNewTimerRejectsNonPositiveDuration(t *testing.T) {
	_, err := NewTimer(0)
	require.Error(t, err)
}
