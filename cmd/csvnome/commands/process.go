package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func processCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "process <input.csv>",
		Short: "Load a CSV file, truncate the column and save the result",
		Long: "Load a CSV file, require the column, keep only the first word of each of\n" +
			"its text values and write the result. Without -o the result is written to\n" +
			"the default save name (csv2.csv) in PROCESS_OUTPUT_DIR or the working directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			snap, err := a.service.ProcessFile(ctx, args[0])
			if err != nil {
				return userError(err)
			}

			path, err := a.service.Save(ctx, output)
			if err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d rows, %d columns)\n", path, snap.Rows, snap.Columns)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file; .xlsx writes a workbook")
	return cmd
}
