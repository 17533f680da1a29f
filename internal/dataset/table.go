package dataset

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateColumn is returned when a column name is added twice. Silent
// overwrites would hide a mis-wired enrichment pipeline.
var ErrDuplicateColumn = errors.New("dataset: column already exists")

// Table is a row-aligned feature table: named feature columns in insertion
// order, one target value per row, and each row's associated calendar date
// (the date of the target, the first day after the lookback window).
type Table struct {
	names  []string
	cols   map[string][]float64
	dates  []time.Time
	target []float64
}

// NewTable builds an empty table over the given row spine.
func NewTable(dates []time.Time, target []float64) (*Table, error) {
	if len(dates) != len(target) {
		return nil, fmt.Errorf("dataset: %d dates vs %d targets", len(dates), len(target))
	}
	return &Table{
		cols:   make(map[string][]float64),
		dates:  append([]time.Time(nil), dates...),
		target: append([]float64(nil), target...),
	}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.target) }

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column's values.
func (t *Table) Column(name string) ([]float64, bool) {
	col, ok := t.cols[name]
	return col, ok
}

// AddColumn appends a new named column. Row count must match and the name
// must be new.
func (t *Table) AddColumn(name string, values []float64) error {
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
	}
	if len(values) != t.NumRows() {
		return fmt.Errorf("dataset: column %s has %d rows, table has %d", name, len(values), t.NumRows())
	}
	t.names = append(t.names, name)
	t.cols[name] = append([]float64(nil), values...)
	return nil
}

// Target returns the per-row target values.
func (t *Table) Target() []float64 { return t.target }

// Dates returns the per-row dates.
func (t *Table) Dates() []time.Time { return t.dates }

// Slice copies rows [from, to) into a new table with the same columns.
func (t *Table) Slice(from, to int) (*Table, error) {
	if from < 0 || to > t.NumRows() || from > to {
		return nil, fmt.Errorf("dataset: slice [%d,%d) out of range for %d rows", from, to, t.NumRows())
	}
	out, err := NewTable(t.dates[from:to], t.target[from:to])
	if err != nil {
		return nil, err
	}
	for _, name := range t.names {
		if err := out.AddColumn(name, t.cols[name][from:to]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out, _ := t.Slice(0, t.NumRows())
	return out
}

// Matrix materialises the rows as [][]float64 in column insertion order.
func (t *Table) Matrix() [][]float64 {
	return t.MatrixFor(t.names)
}

// MatrixFor materialises the rows using an explicit column order, as needed
// when scoring against a fitted model's feature layout.
func (t *Table) MatrixFor(names []string) [][]float64 {
	rows := make([][]float64, t.NumRows())
	for i := range rows {
		row := make([]float64, len(names))
		for j, name := range names {
			if col, ok := t.cols[name]; ok {
				row[j] = col[i]
			}
		}
		rows[i] = row
	}
	return rows
}
