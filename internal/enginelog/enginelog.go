// Package enginelog builds *slog.Loggers and derives tagged ones from them
// (sim_id via WithSim; phase and time via WithPhase), per the teacher's
// cmd/sim convention of slog.Default().With(...) derived loggers.
package enginelog

import (
	"log/slog"
	"os"
)

// New returns a JSON-handler slog.Logger writing to stderr at the given
// level.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewNoOp returns a logger that discards everything, for tests and
// library callers that have not wired one in.
func NewNoOp() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// WithSim derives a logger carrying the simulation id every subsequent
// line from this run should be tagged with.
func WithSim(l *slog.Logger, simID string) *slog.Logger {
	return l.With(slog.String("sim_id", simID))
}

// WithPhase derives a logger tagged with the current kernel phase
// (build/tick/resolve/tock/daily/decommission) and timestep.
func WithPhase(l *slog.Logger, phase string, t int64) *slog.Logger {
	return l.With(slog.String("phase", phase), slog.Int64("time", t))
}
