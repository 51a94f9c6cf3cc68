// Package kernel drives the simulation's phased per-timestep loop: build
// processing, Tick, exchange resolution, Tock, Daily, decommission
// processing, and the recorder flush boundary, per spec.md §4.9 and §5
// (C11).
package kernel

import (
	"log/slog"
	"time"

	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/enginelog"
	"github.com/cyclus/fuelsim/internal/enginemetrics"
)

// Builder constructs a live agent.Agent from a BuildOrder, wiring it into
// the agent tree and the Timer's listener registry. cmd/fuelsim supplies
// the concrete implementation (it alone knows how to dispatch to the
// archetype registry).
type Builder interface {
	Build(order engine.BuildOrder) (*agent.Agent, error)
}

// Kernel is the simulation driver: it owns no domain state of its own,
// only the sequencing of a Context's phases each step.
type Kernel struct {
	ctx     *engine.Context
	builder Builder
	agents  map[engid.ID]*agent.Agent
	onError func(agentID int64, phase string, err error)
	log     *slog.Logger
	metrics *enginemetrics.SimMetrics
}

// New builds a Kernel bound to ctx and builder. onError is called for
// every failure the phased loop isolates rather than propagating
// (spec.md §7's "agent errors are recorded and the offending agent is
// isolated for this step"); a nil onError discards them. A nil log
// discards kernel diagnostics.
func New(ctx *engine.Context, builder Builder, onError func(agentID int64, phase string, err error)) *Kernel {
	if onError == nil {
		onError = func(int64, string, error) {}
	}
	return &Kernel{ctx: ctx, builder: builder, agents: make(map[engid.ID]*agent.Agent), onError: onError, log: enginelog.NewNoOp()}
}

// WithLogger attaches a structured logger for step/build/decommission
// diagnostics, returning the Kernel for chaining.
func (k *Kernel) WithLogger(l *slog.Logger) *Kernel {
	if l != nil {
		k.log = l
	}
	return k
}

// WithMetrics attaches the prometheus series the kernel populates each
// step, returning the Kernel for chaining. A nil m leaves metrics
// unobserved.
func (k *Kernel) WithMetrics(m *enginemetrics.SimMetrics) *Kernel {
	k.metrics = m
	return k
}

// PreHistory runs the initial builds scheduled for time 0 and enters them
// before the main loop begins (spec.md §4.9's pre-history phase: initial
// agents exist and have entered before Tick 0 fires).
func (k *Kernel) PreHistory() error {
	return k.processBuilds(0)
}

// Step runs exactly one timestep's phases: process due builds, broadcast
// Tick, resolve every registered market, broadcast Tock, broadcast Daily,
// process due decommissions, flush the recorder. It returns false once
// the Timer reports the simulation is done.
func (k *Kernel) Step() (bool, error) {
	timer := k.ctx.Timer()
	if timer.Done() {
		return false, nil
	}
	t := timer.Time()
	k.log.Debug("step begin", slog.Int64("t", t))

	if err := k.processBuilds(t); err != nil {
		return false, err
	}

	timer.BroadcastTick(func(id int64, err error) { k.onError(id, "tick", err) })

	resolveStart := time.Now()
	timer.ResolveMarkets(func(err error) { k.onError(0, "resolve", err) })
	if k.metrics != nil {
		k.metrics.ResolveDuration.Observe(time.Since(resolveStart).Seconds())
	}

	timer.BroadcastTock(func(id int64, err error) { k.onError(id, "tock", err) })
	timer.BroadcastDaily(func(id int64, err error) { k.onError(id, "daily", err) })

	if err := k.processDecoms(t); err != nil {
		return false, err
	}
	if k.metrics != nil {
		k.metrics.AgentsAlive.Set(float64(k.ctx.RunningCount()))
	}

	if err := k.ctx.Recorder().Flush(); err != nil {
		return false, err
	}

	timer.Advance()
	return !timer.Done(), nil
}

// Run drives Step until the simulation duration is exhausted.
func (k *Kernel) Run() error {
	if err := k.PreHistory(); err != nil {
		return err
	}
	for {
		more, err := k.Step()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return k.ctx.Recorder().Close()
}

func (k *Kernel) processBuilds(t int64) error {
	for _, order := range k.ctx.DrainBuilds(t) {
		a, err := k.builder.Build(order)
		if err != nil {
			if engineerr.Fatal(err) {
				k.log.Error("build failed fatally", slog.String("proto", order.Proto), slog.Any("err", err))
				return err
			}
			k.log.Warn("build failed", slog.String("proto", order.Proto), slog.Any("err", err))
			k.onError(int64(order.Parent), "build", err)
			continue
		}
		k.agents[a.ID()] = a
		if err := a.Build(); err != nil {
			k.onError(int64(a.ID()), "build", err)
			continue
		}
		if err := a.EnterNotify(t); err != nil {
			k.onError(int64(a.ID()), "enter", err)
			continue
		}
		if listener, ok := a.Behavior().(engine.TimeListener); ok {
			k.ctx.Timer().RegisterListener(int64(a.ID()), listener)
		}
		k.ctx.MarkRunning(a.ID())
		k.recordAgentEntry(a, order, t)
		k.log.Info("agent entered", slog.Int64("id", int64(a.ID())), slog.String("proto", order.Proto))
	}
	return nil
}

func (k *Kernel) processDecoms(t int64) error {
	for _, order := range k.ctx.DrainDecoms(t) {
		a, ok := k.agents[order.Agent]
		if !ok {
			continue
		}
		if err := a.BeginDecommission(); err != nil {
			k.onError(int64(order.Agent), "decommission", err)
			continue
		}
		k.ctx.Timer().UnregisterListener(int64(order.Agent))
		if err := a.Decommission(t); err != nil {
			k.onError(int64(order.Agent), "decommission", err)
			continue
		}
		k.ctx.MarkStopped(order.Agent)
		delete(k.agents, order.Agent)
		k.ctx.Recorder().NewDatum("AgentExit").
			AddVal("AgentId", int64(order.Agent)).
			AddVal("ExitTime", t).
			Record()
	}
	return nil
}

// recordAgentEntry emits the AgentEntry row spec.md §6 names as a required
// core table, once an agent has successfully entered the running
// simulation.
func (k *Kernel) recordAgentEntry(a *agent.Agent, order engine.BuildOrder, t int64) {
	implementation := order.Proto
	if proto, err := k.ctx.Prototype(order.Proto); err == nil {
		implementation = proto.Archetype
	}
	k.ctx.Recorder().NewDatum("AgentEntry").
		AddVal("AgentId", int64(a.ID())).
		AddVal("Kind", "Agent").
		AddVal("Implementation", implementation).
		AddVal("Prototype", order.Proto).
		AddVal("ParentId", int64(order.Parent)).
		AddVal("EnterTime", t).
		Record()
}
