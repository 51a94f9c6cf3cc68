package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Duration:      10,
		DecayInterval: 86400,
		RecorderFlush: 100,
		OutputPath:    "out.sqlite",
		Recipes: []RecipeDirective{
			{Name: "natu", MassFrac: map[string]float64{"U235": 0.00711, "U238": 0.99289}},
		},
		Prototypes: []PrototypeDirective{
			{Name: "src", Archetype: "source"},
			{Name: "snk", Archetype: "sink"},
		},
		InitialBuilds: []BuildDirective{
			{Prototype: "src", When: 0},
			{Prototype: "snk", When: 0},
		},
	}
}

func TestVerifyAcceptsValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Verify())
}

func TestVerifyRejectsZeroDuration(t *testing.T) {
	c := validConfig()
	c.Duration = 0
	require.True(t, errors.Is(c.Verify(), ErrInvalidDuration))
}

func TestVerifyRejectsMissingOutputPath(t *testing.T) {
	c := validConfig()
	c.OutputPath = ""
	require.ErrorIs(t, c.Verify(), ErrMissingOutputPath)
}

func TestVerifyRejectsDuplicatePrototype(t *testing.T) {
	c := validConfig()
	c.Prototypes = append(c.Prototypes, PrototypeDirective{Name: "src", Archetype: "source"})
	require.True(t, errors.Is(c.Verify(), ErrDuplicatePrototype))
}

func TestVerifyRejectsUnknownParent(t *testing.T) {
	c := validConfig()
	c.Prototypes[0].ParentName = "missing"
	require.True(t, errors.Is(c.Verify(), ErrUnknownParentProto))
}

func TestVerifyRejectsUnknownBuildPrototype(t *testing.T) {
	c := validConfig()
	c.InitialBuilds = append(c.InitialBuilds, BuildDirective{Prototype: "ghost", When: 0})
	require.True(t, errors.Is(c.Verify(), ErrUnknownBuildProto))
}

func TestLoadDecodesAndVerifies(t *testing.T) {
	data := []byte(`{"duration":5,"decay_interval":0,"recorder_flush":0,"output_path":"x.sqlite","recipes":[],"prototypes":[],"initial_builds":[]}`)
	c, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, int64(5), c.Duration)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	_, err := Load([]byte(`not json`))
	require.Error(t, err)
}
