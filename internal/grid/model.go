// Package grid adapts a table.Table to the shape grid widgets expect:
// a rectangle addressed by (row, column) with string cells and headers.
//
// A Model is a read-only projection. It never copies or mutates the table it
// wraps and is rebuilt whenever the table changes. Every accessor tolerates
// out-of-range coordinates and returns a zero value instead of panicking,
// because widgets probe ranges while laying out.
package grid

import (
	"strconv"

	"github.com/JonMunkholm/csvnome/internal/table"
)

// Source is the capability set a grid widget consumes.
type Source interface {
	RowCount() int
	ColumnCount() int
	CellText(row, col int) string
	ColumnHeader(col int) string
	RowHeader(row int) string
}

// Model projects a table.Table as a Source. A nil table is an empty grid.
type Model struct {
	t *table.Table
}

var _ Source = (*Model)(nil)

// New returns a Model over t.
func New(t *table.Table) *Model {
	return &Model{t: t}
}

// RowCount returns the number of rows.
func (m *Model) RowCount() int {
	if m == nil {
		return 0
	}
	return m.t.NumRows()
}

// ColumnCount returns the number of columns.
func (m *Model) ColumnCount() int {
	if m == nil {
		return 0
	}
	return m.t.NumColumns()
}

// CellText returns the display text at (row, col), or "" when the
// coordinates are out of range.
func (m *Model) CellText(row, col int) string {
	if m == nil {
		return ""
	}
	v, ok := m.t.At(row, col)
	if !ok {
		return ""
	}
	return v.String()
}

// ColumnHeader returns the name of column col.
func (m *Model) ColumnHeader(col int) string {
	if m == nil {
		return ""
	}
	name, _ := m.t.ColumnName(col)
	return name
}

// RowHeader returns the positional label of row, which is its index.
func (m *Model) RowHeader(row int) string {
	if row < 0 || row >= m.RowCount() {
		return ""
	}
	return strconv.Itoa(row)
}

// Page is a rectangular slice of a grid, ready for rendering or encoding.
type Page struct {
	Columns    []string   `json:"columns"`
	RowHeaders []string   `json:"rowHeaders"`
	Rows       [][]string `json:"rows"`
	Offset     int        `json:"offset"`
	Total      int        `json:"total"`
}

// HasMore reports whether rows exist past this page.
func (p Page) HasMore() bool {
	return p.Offset+len(p.Rows) < p.Total
}

// NextOffset returns the offset of the following page.
func (p Page) NextOffset() int {
	return p.Offset + len(p.Rows)
}

// Window reads up to limit rows starting at offset from src. Offsets past the
// end give an empty page; a non-positive limit reads to the end.
func Window(src Source, offset, limit int) Page {
	total := src.RowCount()
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	cols := src.ColumnCount()
	page := Page{
		Columns:    make([]string, cols),
		RowHeaders: make([]string, 0, end-offset),
		Rows:       make([][]string, 0, end-offset),
		Offset:     offset,
		Total:      total,
	}
	for c := 0; c < cols; c++ {
		page.Columns[c] = src.ColumnHeader(c)
	}
	for r := offset; r < end; r++ {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			row[c] = src.CellText(r, c)
		}
		page.RowHeaders = append(page.RowHeaders, src.RowHeader(r))
		page.Rows = append(page.Rows, row)
	}
	return page
}
