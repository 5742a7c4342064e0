package grid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvnome/internal/table"
)

func newModel(t *testing.T, data string) *Model {
	t.Helper()
	tbl, err := table.Load(strings.NewReader(data))
	require.NoError(t, err)
	return New(tbl)
}

func TestModel_Shape(t *testing.T) {
	m := newModel(t, "nome,idade\nAna,30\nBruno,25\n")

	assert.Equal(t, 2, m.RowCount())
	assert.Equal(t, 2, m.ColumnCount())
	assert.Equal(t, "nome", m.ColumnHeader(0))
	assert.Equal(t, "idade", m.ColumnHeader(1))
	assert.Equal(t, "0", m.RowHeader(0))
	assert.Equal(t, "1", m.RowHeader(1))
	assert.Equal(t, "Bruno", m.CellText(1, 0))
	assert.Equal(t, "30", m.CellText(0, 1))
}

func TestModel_NullCellIsEmpty(t *testing.T) {
	m := newModel(t, "nome,idade\n,30\n")

	assert.Equal(t, "", m.CellText(0, 0))
}

func TestModel_OutOfRangeNeverPanics(t *testing.T) {
	m := newModel(t, "nome\nAna\n")

	coords := [][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}, {100, 100}, {-5, -5}}
	for _, c := range coords {
		assert.NotPanics(t, func() {
			assert.Equal(t, "", m.CellText(c[0], c[1]))
		})
	}
	assert.Equal(t, "", m.ColumnHeader(5))
	assert.Equal(t, "", m.ColumnHeader(-1))
	assert.Equal(t, "", m.RowHeader(1))
	assert.Equal(t, "", m.RowHeader(-1))
}

func TestModel_NilIsEmpty(t *testing.T) {
	var m *Model
	assert.Equal(t, 0, m.RowCount())
	assert.Equal(t, 0, m.ColumnCount())
	assert.Equal(t, "", m.CellText(0, 0))
	assert.Equal(t, "", m.ColumnHeader(0))
	assert.Equal(t, "", m.RowHeader(0))

	empty := New(nil)
	assert.Equal(t, 0, empty.RowCount())
	assert.Equal(t, "", empty.CellText(0, 0))
}

func TestWindow(t *testing.T) {
	m := newModel(t, "nome,idade\nA,1\nB,2\nC,3\nD,4\nE,5\n")

	tests := []struct {
		name       string
		offset     int
		limit      int
		wantRows   []string
		wantOffset int
		wantMore   bool
	}{
		{"first page", 0, 2, []string{"A", "B"}, 0, true},
		{"middle page", 2, 2, []string{"C", "D"}, 2, true},
		{"last partial page", 4, 2, []string{"E"}, 4, false},
		{"no limit", 1, 0, []string{"B", "C", "D", "E"}, 1, false},
		{"negative offset", -3, 1, []string{"A"}, 0, true},
		{"past the end", 10, 2, []string{}, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Window(m, tt.offset, tt.limit)

			assert.Equal(t, []string{"nome", "idade"}, page.Columns)
			assert.Equal(t, 5, page.Total)
			assert.Equal(t, tt.wantOffset, page.Offset)
			assert.Equal(t, tt.wantMore, page.HasMore())

			got := make([]string, 0, len(page.Rows))
			for _, r := range page.Rows {
				got = append(got, r[0])
			}
			assert.Equal(t, tt.wantRows, got)
			assert.Len(t, page.RowHeaders, len(page.Rows))
		})
	}
}
