// Package config holds the simulation-level knobs a run is built from:
// duration, the prototype/recipe directives that seed an engine.Context,
// and the recorder's storage target. It is adapted from the teacher's
// config package (which held consensus Parameters); Verify follows
// sampling.Parameters.Verify()'s style of a wrapped sentinel per invalid
// field.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/cyclus/fuelsim/internal/engineerr"
)

// RecipeDirective seeds one named recipe: a fixed isotopic composition,
// given as mass fractions keyed by nuclide symbol (e.g. "U235").
type RecipeDirective struct {
	Name     string             `json:"name"`
	MassFrac map[string]float64 `json:"mass_frac"`
}

// PrototypeDirective seeds one named, archetype-configured agent
// template (spec.md §4.5/§4.6's prototype registry).
type PrototypeDirective struct {
	Name       string          `json:"name"`
	Archetype  string          `json:"archetype"`
	ParentName string          `json:"parent_name,omitempty"`
	Config     json.RawMessage `json:"config"`
}

// BuildDirective schedules one initial agent build (spec.md §4.9's
// pre-history).
type BuildDirective struct {
	Prototype string `json:"prototype"`
	ParentID  int64  `json:"parent_id,omitempty"`
	When      int64  `json:"when"`
}

// Config is the full set of directives a run is built from, plus the
// simulation-wide knobs spec.md §4.9/§5 name directly (duration, decay
// and recorder tuning, nuclide data source).
type Config struct {
	Duration         int64                `json:"duration"`
	DecayInterval    float64              `json:"decay_interval"`
	RecorderFlush    int                  `json:"recorder_flush"`
	NuclideDataPath  string               `json:"nuclide_data_path,omitempty"`
	OutputPath       string               `json:"output_path"`
	Recipes          []RecipeDirective    `json:"recipes"`
	Prototypes       []PrototypeDirective `json:"prototypes"`
	InitialBuilds    []BuildDirective     `json:"initial_builds"`
}

// Sentinel verification errors, wrapped with field context via %w per
// the teacher's sampling.Parameters.Verify() convention.
var (
	ErrInvalidDuration      = engineerr.Validation("duration must be >= 1 timestep")
	ErrInvalidDecayInterval = engineerr.Validation("decay_interval must be >= 0")
	ErrInvalidRecorderFlush = engineerr.Validation("recorder_flush must be >= 0")
	ErrMissingOutputPath    = engineerr.Validation("output_path must be set")
	ErrDuplicateRecipe      = engineerr.Validation("duplicate recipe name")
	ErrDuplicatePrototype   = engineerr.Validation("duplicate prototype name")
	ErrUnknownParentProto   = engineerr.Validation("prototype references unknown parent_name")
	ErrEmptyRecipeName      = engineerr.Validation("recipe name must be non-empty")
	ErrEmptyArchetype       = engineerr.Validation("prototype archetype must be non-empty")
	ErrUnknownBuildProto    = engineerr.Validation("initial build references unknown prototype")
)

// Verify checks every directive for internal consistency before a Config
// is handed to cmd/fuelsim's wiring, failing fast on the first problem
// found rather than partially constructing a Context.
func (c Config) Verify() error {
	if c.Duration < 1 {
		return fmt.Errorf("%w: duration=%d", ErrInvalidDuration, c.Duration)
	}
	if c.DecayInterval < 0 {
		return fmt.Errorf("%w: decay_interval=%g", ErrInvalidDecayInterval, c.DecayInterval)
	}
	if c.RecorderFlush < 0 {
		return fmt.Errorf("%w: recorder_flush=%d", ErrInvalidRecorderFlush, c.RecorderFlush)
	}
	if c.OutputPath == "" {
		return ErrMissingOutputPath
	}

	recipeNames := make(map[string]bool, len(c.Recipes))
	for _, r := range c.Recipes {
		if r.Name == "" {
			return ErrEmptyRecipeName
		}
		if recipeNames[r.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateRecipe, r.Name)
		}
		recipeNames[r.Name] = true
	}

	protoNames := make(map[string]bool, len(c.Prototypes))
	for _, p := range c.Prototypes {
		if p.Name == "" {
			return fmt.Errorf("%w: prototype name must be non-empty", ErrEmptyArchetype)
		}
		if p.Archetype == "" {
			return fmt.Errorf("%w: prototype=%q", ErrEmptyArchetype, p.Name)
		}
		if protoNames[p.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicatePrototype, p.Name)
		}
		protoNames[p.Name] = true
	}
	for _, p := range c.Prototypes {
		if p.ParentName != "" && !protoNames[p.ParentName] {
			return fmt.Errorf("%w: prototype=%q parent=%q", ErrUnknownParentProto, p.Name, p.ParentName)
		}
	}

	for _, b := range c.InitialBuilds {
		if !protoNames[b.Prototype] {
			return fmt.Errorf("%w: %q", ErrUnknownBuildProto, b.Prototype)
		}
	}
	return nil
}

// Load decodes a Config from JSON and verifies it, matching the teacher's
// "decode then Verify" flow for directive input.
func Load(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, engineerr.IO("config: decode: %s", err)
	}
	if err := c.Verify(); err != nil {
		return Config{}, err
	}
	return c, nil
}
