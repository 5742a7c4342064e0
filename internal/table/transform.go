package table

import (
	"strings"
	"unicode"
)

// isSeparator reports whether r splits words. Besides Unicode white space it
// includes the ASCII file, group, record and unit separators (U+001C to
// U+001F), which text tools conventionally treat as field breaks.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// FirstToken returns the first whitespace-delimited word of s: leading
// whitespace is skipped, then everything from the next whitespace character
// on is dropped. Empty and whitespace-only values are returned unchanged.
func FirstToken(s string) string {
	trimmed := strings.TrimLeftFunc(s, isSeparator)
	if trimmed == "" {
		return s
	}
	if end := strings.IndexFunc(trimmed, isSeparator); end >= 0 {
		return trimmed[:end]
	}
	return trimmed
}

// Truncate returns a copy of t in which every textual value of the named
// column is reduced to its first token. Null and numeric values, and every
// other column, are unchanged. The returned Table shares the untouched
// columns with t.
func (t *Table) Truncate(column string) (*Table, error) {
	return t.MapColumn(column, FirstToken)
}

// MapColumn returns a copy of t with fn applied to the textual values of the
// named column.
func (t *Table) MapColumn(column string, fn func(string) string) (*Table, error) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return nil, schemaError(column)
	}

	out := &Table{
		columns: t.columns,
		data:    make([][]Value, len(t.data)),
		rows:    t.rows,
	}
	copy(out.data, t.data)

	mapped := make([]Value, len(t.data[idx]))
	for r, v := range t.data[idx] {
		if v.IsText() {
			v.Raw = fn(v.Raw)
		}
		mapped[r] = v
	}
	out.data[idx] = mapped
	return out, nil
}
