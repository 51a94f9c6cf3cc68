// Package agent implements the simulation's agent lifecycle: the
// parent/child tree, the {configured,built,entered,live,decommissioning,
// dead} state machine, and Clone/Snapshot, per spec.md §4.6 (C8).
package agent

import (
	"sync"

	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
)

// State is one point in an agent's lifecycle (spec.md §4.6).
type State int

const (
	Configured State = iota
	Built
	Entered
	Live
	Decommissioning
	Dead
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Built:
		return "built"
	case Entered:
		return "entered"
	case Live:
		return "live"
	case Decommissioning:
		return "decommissioning"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// transitions enumerates every legal state change (spec.md §4.6: an agent
// only ever moves forward through the lifecycle, one state at a time, and
// reaches Dead only through Decommissioning).
var transitions = map[State][]State{
	Configured:      {Built},
	Built:           {Entered},
	Entered:         {Live},
	Live:            {Decommissioning},
	Decommissioning: {Dead},
	Dead:            nil,
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Behavior is the archetype-specific logic an Agent delegates to: building
// behavior, resource handling, and the Trader mixin (package trader) all
// compose with an Agent by implementing the hooks they need.
type Behavior interface {
	// Prototype is the name this agent was built from.
	Prototype() string
	// EnterNotify is called once, after Build, when the agent joins the
	// running simulation (spec.md §4.6).
	EnterNotify()
	// Decommission is called once, when the agent is scheduled to leave;
	// implementations should release held resources.
	Decommission()
}

// Agent is the generic lifecycle wrapper around every concrete archetype
// instance. It owns identity, parent/child links, and the state machine;
// Behavior supplies the domain-specific hooks (spec.md §4.6's "an Agent
// is a node in a tree... each Agent has exactly one parent (nil for the
// root) and zero or more children").
type Agent struct {
	mu sync.RWMutex

	id       engid.ID
	parent   *Agent
	children []*Agent

	state    State
	behavior Behavior

	enterTime int64
	exitTime  int64 // zero until decommissioned
}

// New builds a Configured agent with the given id, parent (nil for root),
// and behavior.
func New(id engid.ID, parent *Agent, behavior Behavior) *Agent {
	a := &Agent{id: id, parent: parent, behavior: behavior, state: Configured}
	if parent != nil {
		parent.addChild(a)
	}
	return a
}

func (a *Agent) addChild(child *Agent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.children = append(a.children, child)
}

func (a *Agent) ID() engid.ID      { return a.id }
func (a *Agent) Parent() *Agent    { return a.parent }
func (a *Agent) Prototype() string { return a.behavior.Prototype() }

// Behavior returns the archetype-specific hooks this agent delegates to,
// so callers can type-assert for optional capabilities (engine.TimeListener,
// trader.Trader).
func (a *Agent) Behavior() Behavior { return a.behavior }

// Children returns this agent's direct children, in build order.
func (a *Agent) Children() []*Agent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Agent, len(a.children))
	copy(out, a.children)
	return out
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// transition moves the agent to `to`, failing with StateError if the move
// is not legal from the current state (spec.md §4.6).
func (a *Agent) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !canTransition(a.state, to) {
		return engineerr.State("agent %d: cannot move from %s to %s", a.id, a.state, to)
	}
	a.state = to
	return nil
}

// Build moves the agent from Configured to Built. Archetype-specific
// construction (reading its config blob) happens before this is called.
func (a *Agent) Build() error { return a.transition(Built) }

// EnterNotify moves the agent from Built to Entered, then Live, invoking
// the behavior's EnterNotify hook once it is Entered (spec.md §4.6:
// "EnterNotify... is the agent's first opportunity to act").
func (a *Agent) EnterNotify(simTime int64) error {
	if err := a.transition(Entered); err != nil {
		return err
	}
	a.behavior.EnterNotify()
	a.mu.Lock()
	a.enterTime = simTime
	a.mu.Unlock()
	return a.transition(Live)
}

// BeginDecommission moves a Live agent to Decommissioning.
func (a *Agent) BeginDecommission() error { return a.transition(Decommissioning) }

// Decommission invokes the behavior's Decommission hook and moves the
// agent to Dead, recording the exit time.
func (a *Agent) Decommission(simTime int64) error {
	if err := a.transition(Dead); err != nil {
		return err
	}
	a.behavior.Decommission()
	a.mu.Lock()
	a.exitTime = simTime
	a.mu.Unlock()
	return nil
}

// EnterTime returns the timestep this agent entered the simulation, or
// zero if it has not yet entered.
func (a *Agent) EnterTime() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enterTime
}

// ExitTime returns the timestep this agent was decommissioned, or zero if
// it is still alive.
func (a *Agent) ExitTime() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exitTime
}

// Snapshot captures the agent's identity and lifecycle fields for
// recording or inspection, without exposing the live tree structure
// (spec.md §4.6's "Snapshot... a point-in-time, detached view").
type Snapshot struct {
	ID        engid.ID
	ParentID  engid.ID // zero if root
	Prototype string
	State     State
	EnterTime int64
	ExitTime  int64
}

// Snapshot returns a detached view of the agent's current state.
func (a *Agent) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var parentID engid.ID
	if a.parent != nil {
		parentID = a.parent.ID()
	}
	return Snapshot{
		ID:        a.id,
		ParentID:  parentID,
		Prototype: a.behavior.Prototype(),
		State:     a.state,
		EnterTime: a.enterTime,
		ExitTime:  a.exitTime,
	}
}
