// Package record implements the Recorder/Backend row pipeline (spec.md
// §4.4, C6): agents build Datum rows and hand them to a Recorder, which
// buffers and flushes them to every registered Backend in arrival order.
package record

import (
	"sync"

	"github.com/cyclus/fuelsim/internal/engineerr"
)

// Value is the set of types a Datum field may hold (spec.md §3's Row/Datum:
// integers, floats, strings, blobs, and nuclide ids — nuclide ids are
// stored as int64, matching nuclide.ID's underlying representation).
type Value interface{}

// Field is one (name, typed value) pair within a Datum.
type Field struct {
	Name  string
	Value Value
}

// Datum is a single row destined for a named table.
type Datum struct {
	Table  string
	Fields []Field
}

// Val returns the value of the named field, or nil if absent.
func (d *Datum) Val(name string) Value {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Builder accumulates fields for one Datum before it is recorded. Obtained
// from Recorder.NewDatum and intended to be used in a single chained
// expression: `rec.NewDatum("Resources").AddVal("ResourceId", id).Record()`.
type Builder struct {
	rec   *Recorder
	datum Datum
}

// AddVal appends a field and returns the Builder for chaining.
func (b *Builder) AddVal(name string, v Value) *Builder {
	b.datum.Fields = append(b.datum.Fields, Field{Name: name, Value: v})
	return b
}

// Record enqueues the accumulated Datum on the owning Recorder.
func (b *Builder) Record() {
	b.rec.enqueue(b.datum)
}

// Backend accepts batches of rows and answers queries against them
// (spec.md §6's Backend contract). sqlitebackend and memorybackend are the
// two implementations this repo ships.
type Backend interface {
	// Notify delivers a batch of rows in the order they were recorded.
	Notify(batch []Datum) error
	// Query returns every row of table matching all conditions (ANDed).
	Query(table string, conditions []Cond) ([]Row, error)
	// Close releases any resources the backend holds.
	Close() error
}

// Op is a comparison operator usable in a Cond (spec.md §3's Condition).
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
)

// Cond is a single (field, operator, value) filter predicate.
type Cond struct {
	Field string
	Op    Op
	Value Value
}

// Row is a query result row, exposed as an ordered field-name -> value map
// (spec.md §6).
type Row map[string]Value

// Recorder is the single-producer sink agents push rows through. It buffers
// up to FlushThreshold rows before automatically flushing to every
// registered Backend.
type Recorder struct {
	mu             sync.Mutex
	backends       []Backend
	buf            []Datum
	flushThreshold int
	closed         bool
}

// NewRecorder builds a Recorder that auto-flushes once buf reaches
// flushThreshold rows. A non-positive threshold disables auto-flush (the
// caller must call Flush explicitly, e.g. at each phase boundary).
func NewRecorder(flushThreshold int) *Recorder {
	return &Recorder{flushThreshold: flushThreshold}
}

// RegisterBackend adds b to the set notified on Flush.
func (r *Recorder) RegisterBackend(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = append(r.backends, b)
}

// NewDatum starts building a row for the named table.
func (r *Recorder) NewDatum(table string) *Builder {
	return &Builder{rec: r, datum: Datum{Table: table}}
}

func (r *Recorder) enqueue(d Datum) {
	r.mu.Lock()
	r.buf = append(r.buf, d)
	shouldFlush := r.flushThreshold > 0 && len(r.buf) >= r.flushThreshold
	r.mu.Unlock()
	if shouldFlush {
		_ = r.Flush()
	}
}

// Flush delivers every buffered row to all registered backends, in the
// order Record() was called, then clears the buffer. The kernel calls
// Flush at the end of every timestep (spec.md §4.9) to guarantee rows from
// a given step are durable before the simulation advances.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return nil
	}
	batch := r.buf
	r.buf = nil
	backends := append([]Backend(nil), r.backends...)
	r.mu.Unlock()

	for _, b := range backends {
		if err := b.Notify(batch); err != nil {
			return engineerr.IO("record: backend notify failed: %v", err)
		}
	}
	return nil
}

// Close flushes any remaining rows and closes every backend.
func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			return engineerr.IO("record: backend close failed: %v", err)
		}
	}
	return nil
}
