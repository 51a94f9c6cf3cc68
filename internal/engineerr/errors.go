// Package engineerr defines the typed error kinds raised by the simulation
// core and the boundary that attaches simulation context to them.
package engineerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every error the core raises wraps exactly one of these so
// callers can classify failures with errors.Is regardless of the message.
var (
	ErrValue      = errors.New("value error")
	ErrKey        = errors.New("key error")
	ErrIO         = errors.New("io error")
	ErrState      = errors.New("state error")
	ErrValidation = errors.New("validation error")
)

// Error wraps a sentinel kind with simulation context: the phase and agent
// the failure occurred in, if known.
type Error struct {
	Kind    error
	AgentID int64 // 0 if not attributable to an agent
	Phase   string
	Msg     string
}

func (e *Error) Error() string {
	if e.AgentID != 0 || e.Phase != "" {
		return fmt.Sprintf("%s (agent=%d phase=%s): %s", e.Kind, e.AgentID, e.Phase, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Value builds a ValueError for a precondition violated on quantities,
// compositions, or capacities.
func Value(format string, args ...interface{}) *Error { return newf(ErrValue, format, args...) }

// Key builds a KeyError for an unknown recipe, commodity, prototype, or
// nuclide id.
func Key(format string, args ...interface{}) *Error { return newf(ErrKey, format, args...) }

// IO builds an IOError for an unreachable backend, module, or input file.
func IO(format string, args ...interface{}) *Error { return newf(ErrIO, format, args...) }

// State builds a StateError for an operation forbidden in the agent's
// current lifecycle state.
func State(format string, args ...interface{}) *Error { return newf(ErrState, format, args...) }

// Validation builds a ValidationError for input data that fails a
// constraint.
func Validation(format string, args ...interface{}) *Error {
	return newf(ErrValidation, format, args...)
}

// WithAgent attaches agent/phase context to an existing *Error, returning it
// unchanged if err is not one of ours (so the kernel's boundary can annotate
// any error, including ones that escaped from unrelated code).
func WithAgent(err error, agentID int64, phase string) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.AgentID = agentID
		cp.Phase = phase
		return &cp
	}
	return err
}

// Fatal reports whether a kind must terminate the simulation per spec: an
// IOError, or a kind the engine does not recognize at all.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIO) {
		return true
	}
	return !errors.Is(err, ErrValue) && !errors.Is(err, ErrKey) &&
		!errors.Is(err, ErrState) && !errors.Is(err, ErrValidation)
}
