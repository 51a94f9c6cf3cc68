package engine

import (
	"sync"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/resource"
)

// Prototype is a named, archetype-configured agent template: the
// prototype registry maps a name to the spec blob + archetype kind an
// agent.Builder needs to build a live instance (spec.md §4.5/§4.6).
type Prototype struct {
	Name         string
	Archetype    string
	ConfigBlob   []byte // opaque, archetype-specific (codec-serialized)
	ParentProto  string // empty for a root-level prototype
}

// BuildOrder is one entry in the build queue: build Proto under Parent at
// time When.
type BuildOrder struct {
	Proto  string
	Parent engid.ID // 0 for no parent (root agent)
	When   int64
}

// DecomOrder is one entry in the decommission queue.
type DecomOrder struct {
	Agent engid.ID
	When  int64
}

// Context is the simulation-wide kernel object: it owns the Timer, the
// Recorder, the recipe registry, the prototype registry, the build and
// decommission queues, the running agent set, and the id counters every
// other subsystem shares (spec.md §4.5).
type Context struct {
	mu sync.RWMutex

	timer *Timer
	rec   *record.Recorder
	mt    nuclide.MassTable
	arena *composition.Arena
	resReg *resource.Registry

	agentIDs engid.Counter
	txIDs    engid.Counter

	recipes    map[string]*composition.Composition
	prototypes map[string]*Prototype

	buildQueue []BuildOrder
	decomQueue []DecomOrder

	running   map[engid.ID]struct{}
	decayIvl  float64
}

// New builds a Context wired to the given Timer, Recorder, mass table, and
// resource-side collaborators. The caller constructs those independently
// (cmd/fuelsim's wiring step) so Context stays a pure aggregator.
func New(timer *Timer, rec *record.Recorder, mt nuclide.MassTable, arena *composition.Arena, resReg *resource.Registry) *Context {
	return &Context{
		timer:      timer,
		rec:        rec,
		mt:         mt,
		arena:      arena,
		resReg:     resReg,
		recipes:    make(map[string]*composition.Composition),
		prototypes: make(map[string]*Prototype),
		running:    make(map[engid.ID]struct{}),
	}
}

func (c *Context) Timer() *Timer                    { return c.timer }
func (c *Context) Recorder() *record.Recorder       { return c.rec }
func (c *Context) MassTable() nuclide.MassTable     { return c.mt }
func (c *Context) Arena() *composition.Arena        { return c.arena }
func (c *Context) Resources() *resource.Registry    { return c.resReg }

// NextAgentID mints the next process-unique agent id.
func (c *Context) NextAgentID() engid.ID { return c.agentIDs.Next() }

// NextTxID mints the next process-unique transaction id.
func (c *Context) NextTxID() engid.ID { return c.txIDs.Next() }

// TxIDs exposes the transaction id counter directly, for collaborators
// (exchange.Exchange) that mint many ids per resolution without routing
// each one through the Context.
func (c *Context) TxIDs() *engid.Counter { return &c.txIDs }

// WithDecayInterval sets the context-wide decay policy consulted by every
// resource.MaterialFactory built against this Context (spec.md §4.2's
// "decay_interval is context-wide policy"); values <= 0 disable decay.
// Returns the Context for chaining.
func (c *Context) WithDecayInterval(d float64) *Context {
	c.decayIvl = d
	return c
}

// DecayInterval reports the context-wide decay policy.
func (c *Context) DecayInterval() float64 { return c.decayIvl }

// Now reports the current simulation time, in the same units as
// DecayInterval, for Materials to consult when deciding whether a lazy
// decay is due on access.
func (c *Context) Now() float64 { return float64(c.timer.Time()) }

// AddRecipe registers a named Composition template. Re-registering an
// existing name overwrites it, matching the teacher's last-registration-
// wins convention for named config maps.
func (c *Context) AddRecipe(name string, comp *composition.Composition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recipes[name] = comp
}

// Recipe looks up a named recipe, failing with KeyError if unknown
// (spec.md §4.5).
func (c *Context) Recipe(name string) (*composition.Composition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.recipes[name]
	if !ok {
		return nil, engineerr.Key("engine: unknown recipe %q", name)
	}
	return comp, nil
}

// AddPrototype registers a named agent template.
func (c *Context) AddPrototype(p *Prototype) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prototypes[p.Name] = p
}

// Prototype looks up a named prototype, failing with KeyError if unknown.
func (c *Context) Prototype(name string) (*Prototype, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prototypes[name]
	if !ok {
		return nil, engineerr.Key("engine: unknown prototype %q", name)
	}
	return p, nil
}

// ScheduleBuild enqueues a future build order (spec.md §4.6's "an agent may
// schedule the build of a child at a future timestep").
func (c *Context) ScheduleBuild(o BuildOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buildQueue = append(c.buildQueue, o)
}

// ScheduleDecom enqueues a future decommission order.
func (c *Context) ScheduleDecom(o DecomOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decomQueue = append(c.decomQueue, o)
}

// DrainBuilds removes and returns every build order due at or before t, in
// the order they were scheduled (spec.md §5's deterministic-order
// requirement).
func (c *Context) DrainBuilds(t int64) []BuildOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due, rest []BuildOrder
	for _, o := range c.buildQueue {
		if o.When <= t {
			due = append(due, o)
		} else {
			rest = append(rest, o)
		}
	}
	c.buildQueue = rest
	return due
}

// DrainDecoms removes and returns every decommission order due at or before
// t.
func (c *Context) DrainDecoms(t int64) []DecomOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due, rest []DecomOrder
	for _, o := range c.decomQueue {
		if o.When <= t {
			due = append(due, o)
		} else {
			rest = append(rest, o)
		}
	}
	c.decomQueue = rest
	return due
}

// MarkRunning adds an agent to the running set (called on EnterNotify).
func (c *Context) MarkRunning(id engid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[id] = struct{}{}
}

// MarkStopped removes an agent from the running set (called on
// decommission completion).
func (c *Context) MarkStopped(id engid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, id)
}

// RunningCount reports the number of live agents, used by kernel
// termination checks and the CLI's progress output.
func (c *Context) RunningCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.running)
}

// IsRunning reports whether id is currently in the running set.
func (c *Context) IsRunning(id engid.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.running[id]
	return ok
}
