package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatForPath picks the output format from a file extension.
// Anything other than .xlsx is written as CSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseFormat converts a user-supplied format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Write encodes t as CSV: a header row, then one record per row, with no
// row-index column. Null values are written as empty fields.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return writeError("", err)
	}
	return nil
}

// WriteAs encodes t in the given format.
func (t *Table) WriteAs(w io.Writer, format Format) error {
	if format == FormatXLSX {
		return t.WriteXLSX(w)
	}
	return t.Write(w)
}

// WriteFile writes t to path, choosing the format from the extension.
// The file is created or truncated.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return writeError(path, err)
	}

	if err := t.WriteAs(f, FormatForPath(path)); err != nil {
		f.Close()
		if te, ok := err.(*Error); ok {
			te.Path = path
		}
		return err
	}
	if err := f.Close(); err != nil {
		return writeError(path, err)
	}
	return nil
}

// xlsxSheet is the name of the single worksheet written by WriteXLSX.
const xlsxSheet = "Sheet1"

// WriteXLSX encodes t as a single-sheet Excel workbook. Numeric cells are
// stored as numbers, text as strings and nulls are left blank.
func (t *Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, t.NumColumns())
	for i, c := range t.columns {
		header[i] = c
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return writeError("", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		cells := make([]any, t.NumColumns())
		for c := range t.data {
			v := t.data[c][r]
			switch v.Kind {
			case KindNull:
				cells[c] = nil
			case KindNumber:
				if n, ok := v.Float(); ok {
					cells[c] = n
				} else {
					cells[c] = v.Raw
				}
			default:
				cells[c] = v.Raw
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return writeError("", err)
		}
		if err := f.SetSheetRow(xlsxSheet, axis, &cells); err != nil {
			return writeError("", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return writeError("", err)
	}
	return nil
}
