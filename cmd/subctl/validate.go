package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"submission-backend/internal/spreadsheet"
)

func newValidateCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "validate <file.xlsx>",
		Short: "Run the workbook validator locally and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			result, perr := spreadsheet.ParseWorkbook(filepath.Base(path), f)
			if perr != nil {
				fmt.Fprintf(out, "invalid (%s): %s\n", perr.Kind, perr.Error())
				return errInvalidWorkbook
			}
			if summary {
				fmt.Fprintf(out, "valid: %q (%s) with %d points\n", result.Metadata.Title, result.Metadata.Sector, len(result.Series))
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Print a one-line summary instead of the parsed JSON")
	return cmd
}
