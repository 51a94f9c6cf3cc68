// Package memorybackend is an in-memory record.Backend used by tests and by
// tooling that wants queryable results without a SQLite file.
package memorybackend

import (
	"sync"

	"github.com/cyclus/fuelsim/internal/record"
)

// Backend stores every notified Datum, grouped by table, preserving
// arrival order.
type Backend struct {
	mu     sync.Mutex
	tables map[string][]record.Datum
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{tables: make(map[string][]record.Datum)}
}

func (b *Backend) Notify(batch []record.Datum) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range batch {
		b.tables[d.Table] = append(b.tables[d.Table], d)
	}
	return nil
}

func (b *Backend) Query(table string, conditions []record.Cond) ([]record.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []record.Row
	for _, d := range b.tables[table] {
		if !matches(d, conditions) {
			continue
		}
		row := make(record.Row, len(d.Fields))
		for _, f := range d.Fields {
			row[f.Name] = f.Value
		}
		out = append(out, row)
	}
	return out, nil
}

func (b *Backend) Close() error { return nil }

func matches(d record.Datum, conds []record.Cond) bool {
	for _, c := range conds {
		v := d.Val(c.Field)
		if !evalCond(v, c) {
			return false
		}
	}
	return true
}

func evalCond(v interface{}, c record.Cond) bool {
	lf, lok := toFloat(v)
	rf, rok := toFloat(c.Value)
	if lok && rok {
		switch c.Op {
		case record.OpEq:
			return lf == rf
		case record.OpNeq:
			return lf != rf
		case record.OpLt:
			return lf < rf
		case record.OpLeq:
			return lf <= rf
		case record.OpGt:
			return lf > rf
		case record.OpGeq:
			return lf >= rf
		}
	}
	switch c.Op {
	case record.OpEq:
		return v == c.Value
	case record.OpNeq:
		return v != c.Value
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
