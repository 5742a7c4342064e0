package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvnome/internal/grid"
	csvtable "github.com/JonMunkholm/csvnome/internal/table"
)

var (
	borderColor = lipgloss.Color("#6B7280")
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)
	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)
)

func showCmd(a *app) *cobra.Command {
	var (
		transform bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "show <input.csv>",
		Short: "Print a CSV file as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src grid.Source
			if transform {
				if _, err := a.service.ProcessFile(cmd.Context(), args[0]); err != nil {
					return userError(err)
				}
				src = a.service.Grid()
			} else {
				t, err := csvtable.LoadFile(args[0])
				if err != nil {
					return userError(err)
				}
				src = grid.New(t)
			}

			renderGrid(cmd.OutOrStdout(), src, limit)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&transform, "transform", "t", false, "show the truncated result instead of the raw file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "rows to print; 0 prints all")
	return cmd
}

// gridData exposes a grid.Source to lipgloss/table, with the row header as
// the first column.
type gridData struct {
	src  grid.Source
	rows int
}

func (d gridData) At(row, cell int) string {
	if cell == 0 {
		return d.src.RowHeader(row)
	}
	return d.src.CellText(row, cell-1)
}

func (d gridData) Rows() int    { return d.rows }
func (d gridData) Columns() int { return d.src.ColumnCount() + 1 }

func renderGrid(w io.Writer, src grid.Source, limit int) {
	total := src.RowCount()
	rows := total
	if limit > 0 && limit < total {
		rows = limit
	}

	headers := make([]string, src.ColumnCount()+1)
	for c := 0; c < src.ColumnCount(); c++ {
		headers[c+1] = src.ColumnHeader(c)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(headers...).
		Data(gridData{src: src, rows: rows}).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return indexStyle
			default:
				return cellStyle
			}
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, footerStyle.Render(fmt.Sprintf("%d of %d rows, %d columns", rows, total, src.ColumnCount())))
}
