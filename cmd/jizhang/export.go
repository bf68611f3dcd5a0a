package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"jizhang/internal/backend"
	"jizhang/internal/export"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Write entries and the monthly summary to an Excel file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		path += ".xlsx"
	}
	return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
		d, err := res.Service.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		report := export.Report{Entries: d.Entries, Views: d.Views, Month: d.Now.Format("2006-01")}
		if err := export.SaveAs(path, report); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(d.Entries), path)
		return nil
	})
}
