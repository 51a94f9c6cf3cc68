// Package engid provides the process-unique monotonic identifiers used for
// resources, compositions, agents, and transactions throughout the engine.
package engid

import (
	"fmt"
	"sync/atomic"
)

// ID is an opaque, comparable, process-unique identifier. The zero value
// means "unassigned" (e.g. a Composition that has never been recorded).
type ID int64

func (id ID) String() string { return fmt.Sprintf("%d", int64(id)) }

// IsZero reports whether the id has never been assigned.
func (id ID) IsZero() bool { return id == 0 }

// Counter allocates a strictly increasing sequence of IDs starting at 1.
// A Counter is safe for concurrent use, though the engine's single-threaded
// cooperative scheduling (spec §5) never actually contends on it; atomics
// are used so a Counter can be shared across an agent tree without a mutex.
type Counter struct {
	next int64
}

// Next returns the next ID in the sequence.
func (c *Counter) Next() ID {
	return ID(atomic.AddInt64(&c.next, 1))
}

// Peek returns the ID that the next call to Next will return, without
// consuming it. Useful in tests that assert on exact ID sequences.
func (c *Counter) Peek() ID {
	return ID(atomic.LoadInt64(&c.next) + 1)
}
