package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// missingMarkers are the cell spellings read as KindNull.
var missingMarkers = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// LoadFile reads the CSV file at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, parseError(path, err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		var te *Error
		if errors.As(err, &te) && te.Path == "" {
			te.Path = path
		}
		return nil, err
	}
	return t, nil
}

// Load reads a CSV stream with a header row.
//
// Rows shorter than the header are padded with nulls; longer rows are a
// parse error. Blank header cells are named "Unnamed: N" and repeated names
// get a ".1", ".2", ... suffix so every column name is unique.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(NewCleanReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, parseError("", ErrEmptyFile)
	}
	if err != nil {
		return nil, parseError("", err)
	}
	columns := normalizeHeader(header)

	var raw [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError("", err)
		}
		if len(rec) > len(columns) {
			line, _ := cr.FieldPos(0)
			return nil, parseError("", fmt.Errorf("expected %d fields in line %d, saw %d", len(columns), line, len(rec)))
		}
		raw = append(raw, rec)
	}

	return build(columns, raw), nil
}

// normalizeHeader names blank columns and de-duplicates repeated names.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			base := name
			for {
				name = base + "." + strconv.Itoa(seen[base])
				if _, taken := seen[name]; !taken {
					break
				}
				seen[base]++
			}
		}
		seen[name] = 0
		columns[i] = name
	}
	return columns
}

// build infers each column's kind and assembles the Table.
func build(columns []string, raw [][]string) *Table {
	t := &Table{
		columns: columns,
		data:    make([][]Value, len(columns)),
		rows:    len(raw),
	}
	for c := range columns {
		numeric := columnIsNumeric(raw, c)
		values := make([]Value, len(raw))
		for r, rec := range raw {
			cell := ""
			if c < len(rec) {
				cell = rec[c]
			}
			switch {
			case missingMarkers[cell]:
				values[r] = Null()
			case numeric:
				values[r] = Number(cell)
			default:
				values[r] = Text(cell)
			}
		}
		t.data[c] = values
	}
	return t
}

// columnIsNumeric reports whether every non-null cell of column c parses as
// a number. A column with no values at all is not numeric.
func columnIsNumeric(raw [][]string, c int) bool {
	seen := false
	for _, rec := range raw {
		if c >= len(rec) || missingMarkers[rec[c]] {
			continue
		}
		if !isNumber(rec[c]) {
			return false
		}
		seen = true
	}
	return seen
}

func isNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
