package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/config"
	"github.com/cyclus/fuelsim/internal/enginelog"
)

func sourceSinkConfig() config.Config {
	return config.Config{
		Duration:      5,
		DecayInterval: 0,
		RecorderFlush: 0,
		OutputPath:    ":memory:",
		Recipes: []config.RecipeDirective{
			{Name: "natu", MassFrac: map[string]float64{"U235": 0.00711, "U238": 0.99289}},
		},
		Prototypes: []config.PrototypeDirective{
			{Name: "src", Archetype: "source", Config: []byte(`{"commodity":"natu","recipe":"natu","throughput":10,"capacity":100}`)},
			{Name: "snk", Archetype: "sink", Config: []byte(`{"commodity":"natu","capacity":1000}`)},
		},
		InitialBuilds: []config.BuildDirective{
			{Prototype: "src", When: 0},
			{Prototype: "snk", When: 0},
		},
	}
}

func TestRunSimulationEndToEnd(t *testing.T) {
	sim, err := buildSimulation(sourceSinkConfig(), enginelog.New(slog.LevelError))
	require.NoError(t, err)

	require.NoError(t, sim.kernel.Run())
	require.Equal(t, 2, sim.ctx.RunningCount())

	entries, err := sim.backend.Query("AgentEntry", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	resources, err := sim.backend.Query("Resources", nil)
	require.NoError(t, err)
	require.NotEmpty(t, resources, "source should have manufactured at least one Material")

	txs, err := sim.backend.Query("Transactions", nil)
	require.NoError(t, err)
	require.NotEmpty(t, txs, "sink should have accepted at least one trade from source")
}

func TestParseNuclideName(t *testing.T) {
	id, err := parseNuclideName("U235")
	require.NoError(t, err)
	require.Equal(t, 92, id.Z())
	require.Equal(t, 235, id.A())

	_, err = parseNuclideName("nonsense")
	require.Error(t, err)
}
