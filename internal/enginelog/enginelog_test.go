package enginelog

import (
	"log/slog"
	"testing"
)

func TestNewProducesUsableLogger(t *testing.T) {
	l := New(slog.LevelInfo)
	l.Info("hello", slog.String("k", "v"))
	derived := WithSim(l, "sim-1")
	derived = WithPhase(derived, "tick", 3)
	derived.Warn("warned")
}

func TestNoOpDiscardsEverything(t *testing.T) {
	l := NewNoOp()
	l.Info("should not panic")
	WithSim(l, "sim-1").Error("still fine")
}
