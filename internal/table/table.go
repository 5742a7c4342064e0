package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the inferred type of a cell.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is a single cell.
type Value struct {
	Kind Kind
	Raw  string // Text as read from the file; empty for KindNull
}

// Null returns the missing value.
func Null() Value { return Value{Kind: KindNull} }

// Text returns a textual value.
func Text(s string) Value { return Value{Kind: KindText, Raw: s} }

// Number returns a numeric value with its original spelling.
func Number(raw string) Value { return Value{Kind: KindNumber, Raw: raw} }

// String returns the display form of the value. Null renders as "".
func (v Value) String() string {
	if v.Kind == KindNull {
		return ""
	}
	return v.Raw
}

// IsText reports whether the value is textual.
func (v Value) IsText() bool { return v.Kind == KindText }

// Float returns the numeric value for KindNumber cells.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	return f, err == nil
}

// Table is an immutable rectangular dataset with named columns.
// Data is stored column-major; every column has NumRows values.
type Table struct {
	columns []string
	data    [][]Value
	rows    int
}

// New builds a Table from column names and row-major values.
// Every row must have exactly len(columns) values.
func New(columns []string, rows [][]Value) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		data:    make([][]Value, len(columns)),
		rows:    len(rows),
	}
	for c := range t.data {
		t.data[c] = make([]Value, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(columns))
		}
		for c, v := range row {
			t.data[c][r] = v
		}
	}
	return t, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// ColumnName returns the name of column col.
func (t *Table) ColumnName(col int) (string, bool) {
	if t == nil || col < 0 || col >= len(t.columns) {
		return "", false
	}
	return t.columns[col], true
}

// ColumnIndex returns the position of the named column. Matching is exact.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, c := range t.columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// RequireColumn returns a schema error if the named column is absent.
func (t *Table) RequireColumn(name string) error {
	if !t.HasColumn(name) {
		return schemaError(name)
	}
	return nil
}

// At returns the value at (row, col).
func (t *Table) At(row, col int) (Value, bool) {
	if t == nil || col < 0 || col >= len(t.data) || row < 0 || row >= t.rows {
		return Value{}, false
	}
	return t.data[col][row], true
}

// ColumnValues returns a copy of the values of the named column.
func (t *Table) ColumnValues(name string) ([]Value, bool) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	return append([]Value(nil), t.data[idx]...), true
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []Value {
	if t == nil || r < 0 || r >= t.rows {
		return nil
	}
	out := make([]Value, len(t.columns))
	for c := range t.data {
		out[c] = t.data[c][r]
	}
	return out
}

// Records returns the header followed by every row as strings.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, t.NumRows()+1)
	records = append(records, t.Columns())
	for r := 0; r < t.NumRows(); r++ {
		rec := make([]string, len(t.columns))
		for c := range t.data {
			rec[c] = t.data[c][r].String()
		}
		records = append(records, rec)
	}
	return records
}
