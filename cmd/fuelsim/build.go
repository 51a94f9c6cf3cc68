package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyclus/fuelsim/config"
	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/archetype"
	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/configcodec"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/enginemetrics"
	"github.com/cyclus/fuelsim/internal/exchange"
	"github.com/cyclus/fuelsim/internal/kernel"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
	"github.com/cyclus/fuelsim/internal/record/sqlitebackend"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/trader"
)

// simulation bundles the wired collaborators a run needs, so run.go can
// drive the kernel and query.go can reopen the same backend after exit.
type simulation struct {
	ctx     *engine.Context
	kernel  *kernel.Kernel
	rec     *record.Recorder
	backend record.Backend
	metrics *enginemetrics.SimMetrics
}

// agentBuilder is the kernel.Builder cmd/fuelsim supplies: it alone knows
// how to turn a prototype name into a live agent.Agent, since that
// requires the archetype registry and the parent-agent tree this package
// owns.
type agentBuilder struct {
	ctx      *engine.Context
	registry *archetype.Registry
	exchg    *exchange.Exchange
	agents   map[engid.ID]*agent.Agent
}

func newAgentBuilder(ctx *engine.Context, reg *archetype.Registry, exchg *exchange.Exchange) *agentBuilder {
	return &agentBuilder{ctx: ctx, registry: reg, exchg: exchg, agents: make(map[engid.ID]*agent.Agent)}
}

func (b *agentBuilder) Build(order engine.BuildOrder) (*agent.Agent, error) {
	proto, err := b.ctx.Prototype(order.Proto)
	if err != nil {
		return nil, err
	}
	id := b.ctx.NextAgentID()
	behavior, err := b.registry.Build(proto.Archetype, b.ctx, id, proto.ConfigBlob)
	if err != nil {
		return nil, engineerr.WithAgent(err, int64(id), "build")
	}

	var parent *agent.Agent
	if !order.Parent.IsZero() {
		parent = b.agents[order.Parent]
	}
	a := agent.New(id, parent, behavior)
	b.agents[id] = a

	if t, ok := behavior.(trader.Trader); ok {
		b.exchg.Register(id, t)
	}
	return a, nil
}

// buildSimulation wires a Config into a runnable simulation: mass table,
// composition arena, resource registry, recorder (+ backend), recipe and
// prototype registries, the DRE exchange, and the kernel that drives it.
func buildSimulation(cfg config.Config, log *slog.Logger) (*simulation, error) {
	mt := nuclide.DefaultTable()
	arena := composition.NewArena(decay.NewSolver(), mt)
	resReg := resource.NewRegistry()

	backend, err := openBackend(cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	rec := record.NewRecorder(cfg.RecorderFlush)
	rec.RegisterBackend(backend)

	timer, err := engine.NewTimer(cfg.Duration)
	if err != nil {
		return nil, err
	}
	ctx := engine.New(timer, rec, mt, arena, resReg).WithDecayInterval(cfg.DecayInterval)

	for _, rd := range cfg.Recipes {
		comp, err := buildRecipe(rd.MassFrac, mt)
		if err != nil {
			return nil, engineerr.Validation("fuelsim: recipe %q: %v", rd.Name, err)
		}
		ctx.AddRecipe(rd.Name, comp)
	}
	for _, pd := range cfg.Prototypes {
		blob, err := configcodec.Marshal(pd.Config)
		if err != nil {
			return nil, err
		}
		ctx.AddPrototype(&engine.Prototype{
			Name:        pd.Name,
			Archetype:   pd.Archetype,
			ConfigBlob:  blob,
			ParentProto: pd.ParentName,
		})
	}
	for _, bd := range cfg.InitialBuilds {
		ctx.ScheduleBuild(engine.BuildOrder{Proto: bd.Prototype, Parent: engid.ID(bd.ParentID), When: bd.When})
	}

	reg := prometheus.NewRegistry()
	metrics, err := enginemetrics.New(reg)
	if err != nil {
		return nil, err
	}

	recordError := func(id int64, phase string, err error) {
		kind := "unknown"
		if e, ok := err.(*engineerr.Error); ok {
			kind = e.Kind.Error()
		}
		rec.NewDatum("Errors").
			AddVal("Time", ctx.Timer().Time()).
			AddVal("AgentId", id).
			AddVal("Phase", phase).
			AddVal("Kind", kind).
			AddVal("Message", err.Error()).
			Record()
	}

	exchg := exchange.New(exchange.DefaultPreference(mt), rec, ctx.TxIDs(), func(id engid.ID, phase string, err error) {
		log.Warn("exchange error", slog.Int64("agent", int64(id)), slog.String("phase", phase), slog.Any("err", err))
		recordError(int64(id), phase, err)
	}).WithTradeObserver(func(trader.TradeResponse) {
		metrics.TradesSettled.Observe(1)
	})
	ctx.Timer().RegisterMarket(exchg)

	builder := newAgentBuilder(ctx, archetype.NewRegistry(), exchg)
	k := kernel.New(ctx, builder, func(id int64, phase string, err error) {
		log.Warn("agent error", slog.Int64("agent", id), slog.String("phase", phase), slog.Any("err", err))
		recordError(id, phase, err)
	}).WithLogger(log).WithMetrics(metrics)

	recordInfo(rec, cfg)

	return &simulation{ctx: ctx, kernel: k, rec: rec, backend: backend, metrics: metrics}, nil
}

// recordInfo emits the single Info row spec.md §6 names, ahead of the
// main loop so a reader of the backend always finds it even if the run
// fails partway through.
func recordInfo(rec *record.Recorder, cfg config.Config) {
	rec.NewDatum("Info").
		AddVal("Duration", cfg.Duration).
		AddVal("DecayInterval", cfg.DecayInterval).
		Record()
}

func openBackend(path string) (record.Backend, error) {
	if path == ":memory:" {
		return memorybackend.New(), nil
	}
	return sqlitebackend.Open(path)
}
