// Package archetype is the compiled-in module loader: a registry of
// archetype factories (name -> constructor) plus the reference
// archetypes (source, sink, enrichment) spec.md §8's scenarios exercise,
// per spec.md's "Archetype plug-in contract" and C12. Dynamic plug-in
// loading is out of scope (spec.md Non-goals); this registry is the
// compiled-in equivalent of the plug-in interface it describes.
package archetype

import (
	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/engineerr"
)

// Factory builds a fresh, Configured agent.Behavior from a prototype's
// config blob (spec.md: "each archetype registers a factory returning a
// fresh configured Agent given a configuration blob").
type Factory func(ctx *engine.Context, agentID engid.ID, configBlob []byte) (agent.Behavior, error)

// Registry maps archetype names to their Factory.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry with every built-in reference archetype
// already registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("source", NewSource)
	r.Register("sink", NewSink)
	r.Register("enrichment", NewEnrichment)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build constructs a fresh Behavior for the named archetype, failing with
// KeyError if the archetype is unknown (spec.md §4.5).
func (r *Registry) Build(name string, ctx *engine.Context, agentID engid.ID, configBlob []byte) (agent.Behavior, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, engineerr.Key("archetype: unknown archetype %q", name)
	}
	return f(ctx, agentID, configBlob)
}
