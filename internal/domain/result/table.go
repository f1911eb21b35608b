// Package result defines the tabular output produced by the pipelines and the
// sink contract that persists it.
package result

import (
	"context"
	"strings"
)

// Row maps column name to cell value.
type Row map[string]string

// Table is the output of one pipeline run. Columns fixes the column order;
// KeyColumns identify a row for upsert-by-key merges.
type Table struct {
	Name       string
	Columns    []string
	KeyColumns []string
	Rows       []Row
}

// NewTable returns an empty table with the given layout.
func NewTable(name string, columns, keyColumns []string) *Table {
	return &Table{Name: name, Columns: columns, KeyColumns: keyColumns}
}

// Append adds a row. Missing columns render as empty cells.
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Values returns r's cells in column order.
func (t *Table) Values(r Row) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = r[c]
	}
	return out
}

// KeyOf returns the merge key of r. Key cells are joined with a unit
// separator so that distinct tuples never collide.
func (t *Table) KeyOf(r Row) string {
	if len(t.KeyColumns) == 0 {
		return strings.Join(t.Values(r), "\x1f")
	}
	parts := make([]string, len(t.KeyColumns))
	for i, c := range t.KeyColumns {
		parts[i] = r[c]
	}
	return strings.Join(parts, "\x1f")
}

// Sink persists a table.
type Sink interface {
	Name() string
	Write(ctx context.Context, t *Table) error
}
