package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"jizhang/internal/backend"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	journalLimit int
	journalSince time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent write attempts from the local journal",
	Args:  cobra.NoArgs,
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "l", 20, "Maximum attempts to list")
	journalCmd.Flags().DurationVar(&journalSince, "since", 24*time.Hour, "Window for the failure count")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
		if res.Journal == nil {
			return errors.New("no journal configured (set JOURNAL_DB_PATH)")
		}
		ctx := cmd.Context()
		attempts, err := res.Journal.Recent(ctx, journalLimit)
		if err != nil {
			return err
		}
		failed, err := res.Journal.FailureCount(ctx, time.Now().Add(-journalSince))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "When\tKind\tStatus\tDetail\tError")
		for _, a := range attempts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", humanize.Time(a.At), a.Kind, a.Status, a.Detail, a.Error)
		}
		_ = tw.Flush()
		fmt.Fprintf(out, "\n%d failed write(s) in the last %s\n", failed, journalSince)
		return nil
	})
}
