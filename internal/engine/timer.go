// Package engine implements the simulation-wide Context and Timer (spec.md
// §4.5, C7): the clock, id allocation, recipe registry, prototype registry,
// and the build/decommission scheduling queues every agent and subsystem
// shares.
package engine

import (
	"sort"

	"github.com/cyclus/fuelsim/internal/engineerr"
)

// TimeListener receives the Tick/Tock/Daily broadcasts the kernel sends
// every step (spec.md §4.9). Agents implement this to plan and commit.
type TimeListener interface {
	Tick(t int64)
	Tock(t int64)
}

// DailyListener is the optional subset of TimeListener that also wants the
// Daily broadcast.
type DailyListener interface {
	Daily(t int64)
}

// Market is the per-commodity-family subsystem the Timer calls at the
// resolve-exchange phase (spec.md §4.9); exchange.Exchange implements it.
type Market interface {
	Resolve(t int64) error
}

// Timer drives the simulation clock and owns the listener/market
// registries the kernel iterates every step.
type Timer struct {
	duration int64
	current  int64

	listeners map[int64]TimeListener // keyed by agent id for deterministic ordering
	daily     map[int64]DailyListener
	markets   []Market
}

// NewTimer returns a Timer configured for the given duration in timesteps.
func NewTimer(duration int64) (*Timer, error) {
	if duration <= 0 {
		return nil, engineerr.Validation("engine: duration must be positive, got %d", duration)
	}
	return &Timer{
		duration:  duration,
		listeners: make(map[int64]TimeListener),
		daily:     make(map[int64]DailyListener),
	}, nil
}

// Time returns the current 0-based timestep.
func (t *Timer) Time() int64 { return t.current }

// Dur returns the configured simulation duration.
func (t *Timer) Dur() int64 { return t.duration }

// Advance moves the clock to the next timestep. The kernel calls this once
// per loop iteration.
func (t *Timer) Advance() { t.current++ }

// Done reports whether the simulation has run its full duration.
func (t *Timer) Done() bool { return t.current >= t.duration }

// RegisterListener subscribes an agent (by id) to Tick/Tock broadcasts.
func (t *Timer) RegisterListener(agentID int64, l TimeListener) {
	t.listeners[agentID] = l
	if d, ok := l.(DailyListener); ok {
		t.daily[agentID] = d
	}
}

// UnregisterListener removes an agent from the Tick/Tock/Daily broadcasts
// (called on decommission, spec.md §4.6).
func (t *Timer) UnregisterListener(agentID int64) {
	delete(t.listeners, agentID)
	delete(t.daily, agentID)
}

// RegisterMarket subscribes a Market to the resolve-exchange phase.
func (t *Timer) RegisterMarket(m Market) { t.markets = append(t.markets, m) }

// orderedAgentIDs returns listener agent ids in ascending order, giving the
// kernel the deterministic visitation order spec.md §5 requires.
func (t *Timer) orderedAgentIDs() []int64 {
	ids := make([]int64, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BroadcastTick calls Tick on every registered listener in ascending
// agent-id order, invoking onErr for any listener whose callback panics
// with an error value (the kernel's boundary, spec.md §7); a panic with a
// non-error value is re-raised.
func (t *Timer) BroadcastTick(onErr func(agentID int64, err error)) {
	for _, id := range t.orderedAgentIDs() {
		callGuarded(id, "tick", onErr, func() { t.listeners[id].Tick(t.current) })
	}
}

// BroadcastTock is the Tock analogue of BroadcastTick.
func (t *Timer) BroadcastTock(onErr func(agentID int64, err error)) {
	for _, id := range t.orderedAgentIDs() {
		callGuarded(id, "tock", onErr, func() { t.listeners[id].Tock(t.current) })
	}
}

// BroadcastDaily calls Daily on every listener that opted in.
func (t *Timer) BroadcastDaily(onErr func(agentID int64, err error)) {
	ids := make([]int64, 0, len(t.daily))
	for id := range t.daily {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		callGuarded(id, "daily", onErr, func() { t.daily[id].Daily(t.current) })
	}
}

// ResolveMarkets runs every registered Market's resolution for the current
// step, in registration order.
func (t *Timer) ResolveMarkets(onErr func(err error)) {
	for _, m := range t.markets {
		if err := m.Resolve(t.current); err != nil {
			onErr(err)
		}
	}
}

// callGuarded recovers a panic raised by fn (agent callbacks signal
// unrecoverable error by panicking with an *engineerr.Error, per spec.md
// §5's "Agent code signals unrecoverable error by raising a typed error")
// and reports it through onErr instead of crashing the simulation thread.
func callGuarded(agentID int64, phase string, onErr func(int64, error), fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				panic(r) // not one of ours; a genuine programming bug escapes
			}
			onErr(agentID, engineerr.WithAgent(err, agentID, phase))
		}
	}()
	fn()
}
