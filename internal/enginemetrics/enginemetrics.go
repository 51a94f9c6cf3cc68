// Package enginemetrics exposes the simulation's running-average and
// counter instrumentation, adapted from the teacher's metrics.Averager
// (prometheus-backed observe/read pair) down to the few signals the
// simulation core actually produces: per-step exchange resolution time,
// trades settled, and agents alive.
package enginemetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Averager tracks a running count/sum pair, exposed as both prometheus
// series and an in-process Read() for tests and CLI summaries.
type Averager interface {
	Observe(value float64)
	Read() (sum, count float64)
}

type averager struct {
	mu        sync.RWMutex
	sum       float64
	count     float64
	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager registers name_count/name_sum on reg and returns an Averager
// backed by them.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	count := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_count",
		Help: "Total # of observations of " + help,
	})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_sum",
		Help: "Sum of " + help,
	})
	if err := reg.Register(count); err != nil {
		return nil, err
	}
	if err := reg.Register(sum); err != nil {
		return nil, err
	}
	return &averager{promCount: count, promSum: sum}, nil
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += value
	a.count++
	a.promCount.Inc()
	a.promSum.Set(a.sum)
}

func (a *averager) Read() (float64, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sum, a.count
}

// SimMetrics is the fixed set of series the kernel and exchange populate
// over a simulation run.
type SimMetrics struct {
	Registry        prometheus.Registerer
	ResolveDuration Averager
	TradesSettled   Averager
	AgentsAlive     prometheus.Gauge
}

// New registers every SimMetrics series on reg.
func New(reg prometheus.Registerer) (*SimMetrics, error) {
	resolveDur, err := NewAverager("fuelsim_resolve_duration_seconds", "exchange resolution wall time", reg)
	if err != nil {
		return nil, err
	}
	trades, err := NewAverager("fuelsim_trades_settled", "trades settled", reg)
	if err != nil {
		return nil, err
	}
	alive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fuelsim_agents_alive",
		Help: "Number of agents currently in the Live state",
	})
	if err := reg.Register(alive); err != nil {
		return nil, err
	}
	return &SimMetrics{Registry: reg, ResolveDuration: resolveDur, TradesSettled: trades, AgentsAlive: alive}, nil
}
