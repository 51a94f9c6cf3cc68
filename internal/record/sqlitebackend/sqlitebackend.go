// Package sqlitebackend is the concrete record.Backend spec.md §6 names:
// a table-per-entity SQLite schema, one table per recorded row kind
// (AgentEntry, AgentExit, Transactions, Resources, Compositions, Info,
// AgentPosition, Errors, ...). Columns are created lazily from the first
// Datum seen for a table, which lets archetypes emit their own
// snapshot/private tables (spec.md §4.6 "Snapshot") without a migration
// step.
//
// Pure-Go modernc.org/sqlite is used instead of a cgo sqlite3 driver so this
// backend has no cgo/toolchain dependency, matching how the larger pack
// (erigon, codenerd) favors modernc.org/sqlite for embedded storage.
package sqlitebackend

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/record"
)

// Backend persists rows into a SQLite database at path (use ":memory:" or
// "file::memory:?cache=shared" for an ephemeral store).
type Backend struct {
	mu      sync.Mutex
	db      *sql.DB
	columns map[string]map[string]string // table -> column -> sql type
}

// Open creates (or reuses) the SQLite database at path.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, engineerr.IO("sqlitebackend: open %q: %v", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	return &Backend{db: db, columns: make(map[string]map[string]string)}, nil
}

func (b *Backend) Notify(batch []record.Datum) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return engineerr.IO("sqlitebackend: begin tx: %v", err)
	}
	for _, d := range batch {
		if err := b.ensureTable(tx, d); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := b.insert(tx, d); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return engineerr.IO("sqlitebackend: commit: %v", err)
	}
	return nil
}

func (b *Backend) ensureTable(tx *sql.Tx, d record.Datum) error {
	cols, ok := b.columns[d.Table]
	if !ok {
		cols = make(map[string]string)
		b.columns[d.Table] = cols
		var defs []string
		for _, f := range d.Fields {
			t := sqlType(f.Value)
			cols[f.Name] = t
			defs = append(defs, quoteIdent(f.Name)+" "+t)
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(d.Table), strings.Join(defs, ", "))
		if _, err := tx.Exec(ddl); err != nil {
			return engineerr.IO("sqlitebackend: create table %s: %v", d.Table, err)
		}
		return nil
	}
	for _, f := range d.Fields {
		if _, seen := cols[f.Name]; seen {
			continue
		}
		t := sqlType(f.Value)
		cols[f.Name] = t
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(d.Table), quoteIdent(f.Name), t)
		if _, err := tx.Exec(ddl); err != nil {
			return engineerr.IO("sqlitebackend: add column %s.%s: %v", d.Table, f.Name, err)
		}
	}
	return nil
}

func (b *Backend) insert(tx *sql.Tx, d record.Datum) error {
	names := make([]string, len(d.Fields))
	placeholders := make([]string, len(d.Fields))
	values := make([]interface{}, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = quoteIdent(f.Name)
		placeholders[i] = "?"
		values[i] = f.Value
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(d.Table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.Exec(stmt, values...); err != nil {
		return engineerr.IO("sqlitebackend: insert into %s: %v", d.Table, err)
	}
	return nil
}

func (b *Backend) Query(table string, conditions []record.Cond) ([]record.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cols, ok := b.columns[table]
	if !ok {
		return nil, nil
	}
	colNames := make([]string, 0, len(cols))
	for name := range cols {
		colNames = append(colNames, name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", quoteColumnList(colNames), quoteIdent(table))
	var args []interface{}
	if len(conditions) > 0 {
		var clauses []string
		for _, c := range conditions {
			clauses = append(clauses, quoteIdent(c.Field)+" "+opSQL(c.Op)+" ?")
			args = append(args, c.Value)
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, engineerr.IO("sqlitebackend: query %s: %v", table, err)
	}
	defer rows.Close()

	dest := make([]interface{}, len(colNames))
	ptrs := make([]interface{}, len(colNames))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	var out []record.Row
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, engineerr.IO("sqlitebackend: scan %s: %v", table, err)
		}
		row := make(record.Row, len(colNames))
		for i, name := range colNames {
			row[name] = dest[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.db.Close(); err != nil {
		return engineerr.IO("sqlitebackend: close: %v", err)
	}
	return nil
}

func sqlType(v record.Value) string {
	switch v.(type) {
	case int, int32, int64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case []byte:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func opSQL(op record.Op) string {
	switch op {
	case record.OpEq:
		return "="
	case record.OpNeq:
		return "!="
	case record.OpLt:
		return "<"
	case record.OpLeq:
		return "<="
	case record.OpGt:
		return ">"
	case record.OpGeq:
		return ">="
	default:
		return "="
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteColumnList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return strings.Join(out, ", ")
}
