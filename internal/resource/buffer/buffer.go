// Package buffer implements the FIFO Resource inventory with capacity and
// squash/pop semantics (spec.md §4.3, C5).
package buffer

import (
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/resource"
)

const capTolerance = 1e-10

// Splittable is the subset of resource.Resource a Buffer needs in order to
// split a partial Pop off the head item. Material and Product both satisfy
// it via their ExtractQty methods, which return the same concrete type;
// Buffer stores items as this interface to stay generic over both.
type Splittable interface {
	resource.Resource
	extractQty(q float64) (Splittable, error)
}

// materialItem and productItem adapt *resource.Material / *resource.Product
// to Splittable without exporting extractQty on the resource package's
// public API.
type materialItem struct{ *resource.Material }

func (m materialItem) extractQty(q float64) (Splittable, error) {
	piece, err := m.Material.ExtractQty(q)
	if err != nil {
		return nil, err
	}
	return materialItem{piece}, nil
}

type productItem struct{ *resource.Product }

func (p productItem) extractQty(q float64) (Splittable, error) {
	piece, err := p.Product.ExtractQty(q)
	if err != nil {
		return nil, err
	}
	return productItem{piece}, nil
}

// WrapMaterial adapts a *resource.Material for storage in a Buffer.
func WrapMaterial(m *resource.Material) Splittable { return materialItem{m} }

// WrapProduct adapts a *resource.Product for storage in a Buffer.
func WrapProduct(p *resource.Product) Splittable { return productItem{p} }

// Buffer is an ordered sequence of Resources plus a capacity in the
// resource's units. Insertion order is preserved; there is no implicit
// rebalancing (spec.md §4.3).
type Buffer struct {
	items    []Splittable
	capacity float64
}

// New returns an empty Buffer with the given capacity (use math.Inf(1) for
// unbounded).
func New(capacity float64) *Buffer {
	return &Buffer{capacity: capacity}
}

// Quantity returns the sum of quantities currently held.
func (b *Buffer) Quantity() float64 {
	var sum float64
	for _, it := range b.items {
		sum += it.Quantity()
	}
	return sum
}

// Count returns the number of discrete resources held.
func (b *Buffer) Count() int { return len(b.items) }

// Capacity returns the buffer's capacity.
func (b *Buffer) Capacity() float64 { return b.capacity }

// SetCapacity changes the buffer's capacity; it may not be set below the
// current quantity (spec.md §4.3).
func (b *Buffer) SetCapacity(c float64) error {
	if c < b.Quantity()-capTolerance {
		return engineerr.Value("buffer: cannot set capacity %.6g below current quantity %.6g", c, b.Quantity())
	}
	b.capacity = c
	return nil
}

// Space returns the remaining capacity.
func (b *Buffer) Space() float64 { return b.capacity - b.Quantity() }

// Push appends r, failing with ValueError if doing so would exceed
// capacity (spec.md §4.3).
func (b *Buffer) Push(r Splittable) error {
	if b.Quantity()+r.Quantity() > b.capacity+capTolerance {
		return engineerr.Value("buffer: push of %.6g would exceed capacity %.6g (have %.6g)", r.Quantity(), b.capacity, b.Quantity())
	}
	b.items = append(b.items, r)
	return nil
}

// PopQty removes and returns exactly q from the head, splitting the head
// resource if needed. Fails if q exceeds the buffer's total quantity
// (spec.md §4.3).
func (b *Buffer) PopQty(q float64) ([]Splittable, error) {
	if q > b.Quantity()+capTolerance {
		return nil, engineerr.Value("buffer: cannot pop %.6g from %.6g available", q, b.Quantity())
	}
	var out []Splittable
	remaining := q
	for remaining > capTolerance && len(b.items) > 0 {
		head := b.items[0]
		if head.Quantity() <= remaining+capTolerance {
			out = append(out, head)
			remaining -= head.Quantity()
			b.items = b.items[1:]
			continue
		}
		piece, err := head.extractQty(remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, piece)
		remaining = 0
	}
	return out, nil
}

// Pop is an alias for PopQty, matching the spec's "Pop(q) or PopQty(q)".
func (b *Buffer) Pop(q float64) ([]Splittable, error) { return b.PopQty(q) }

// PopN removes and returns the first n whole resources.
func (b *Buffer) PopN(n int) ([]Splittable, error) {
	if n < 0 || n > len(b.items) {
		return nil, engineerr.Value("buffer: cannot pop %d of %d items", n, len(b.items))
	}
	out := b.items[:n]
	b.items = b.items[n:]
	return out, nil
}

// PopBack removes and returns the last resource (LIFO use).
func (b *Buffer) PopBack() (Splittable, error) {
	if len(b.items) == 0 {
		return nil, engineerr.Value("buffer: pop back on empty buffer")
	}
	last := b.items[len(b.items)-1]
	b.items = b.items[:len(b.items)-1]
	return last, nil
}

// Peek returns the items currently held, in order, without removing them.
func (b *Buffer) Peek() []Splittable {
	out := make([]Splittable, len(b.items))
	copy(out, b.items)
	return out
}

// Squash collapses all contained resources into a single resource. For
// Materials, the result's composition is the mass-weighted average
// (spec.md §4.3); state-ids advance as a side effect of the underlying
// Absorb calls.
func (b *Buffer) Squash() (Splittable, error) {
	if len(b.items) == 0 {
		return nil, engineerr.Value("buffer: squash on empty buffer")
	}
	head := b.items[0]
	for _, rest := range b.items[1:] {
		if err := absorbInto(head, rest); err != nil {
			return nil, err
		}
	}
	b.items = []Splittable{head}
	return head, nil
}

// Combine merges a slice of already-popped items (e.g. the result of
// PopQty, which may split across several underlying resources) into a
// single resource, for callers that need to hand one object to a trade
// partner. The slice must be non-empty and homogeneous in kind.
func Combine(items []Splittable) (Splittable, error) {
	if len(items) == 0 {
		return nil, engineerr.Value("buffer: combine of zero items")
	}
	head := items[0]
	for _, rest := range items[1:] {
		if err := absorbInto(head, rest); err != nil {
			return nil, err
		}
	}
	return head, nil
}

// AsMaterial unwraps a Splittable produced by WrapMaterial, PopQty, or
// Combine back to its underlying *resource.Material, for callers (such as
// trade execution) that need the concrete type rather than the buffer
// package's internal Splittable wrapper.
func AsMaterial(s Splittable) (*resource.Material, bool) {
	m, ok := s.(materialItem)
	if !ok {
		return nil, false
	}
	return m.Material, true
}

// AsProduct is AsMaterial's Product counterpart.
func AsProduct(s Splittable) (*resource.Product, bool) {
	p, ok := s.(productItem)
	if !ok {
		return nil, false
	}
	return p.Product, true
}

func absorbInto(dst, src Splittable) error {
	switch d := dst.(type) {
	case materialItem:
		s, ok := src.(materialItem)
		if !ok {
			return engineerr.Value("buffer: cannot squash mismatched resource types")
		}
		return d.Material.Absorb(s.Material)
	case productItem:
		s, ok := src.(productItem)
		if !ok {
			return engineerr.Value("buffer: cannot squash mismatched resource types")
		}
		return d.Product.Absorb(s.Product)
	default:
		return engineerr.Value("buffer: unsupported resource type")
	}
}
