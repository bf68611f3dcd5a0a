package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"jizhang/internal/aggregate"
	"jizhang/internal/backend"
	"jizhang/internal/core"
	"jizhang/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var summaryRecent int

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Aliases: []string{"status"},
	Short:   "Show this month's spending against the budget",
	Args:    cobra.NoArgs,
	RunE:    runSummary,
}

func init() {
	summaryCmd.Flags().IntVarP(&summaryRecent, "recent", "r", 5, "Number of recent entries to list")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
		d, err := res.Service.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), d, summaryRecent)
		return nil
	})
}

func printBudgetLine(w io.Writer, d *services.Dashboard) {
	v := d.Views
	fmt.Fprintf(w, "%s: spent %s of %s (%d%%), %s\n",
		d.Now.Format("January 2006"),
		core.FormatAmount(v.MonthTotal),
		core.FormatAmount(decimal.NewFromInt(int64(d.Budget))),
		aggregate.Percent(v.Ratio),
		v.Status.Label())
}

func printSummary(w io.Writer, d *services.Dashboard, recent int) {
	v := d.Views
	printBudgetLine(w, d)
	if d.BudgetFallback {
		fmt.Fprintln(w, "note: budget cell unreadable, using the default")
	}
	fmt.Fprintf(w, "Remaining: %s\n", core.FormatAmount(v.Remaining))
	if n := len(d.Warnings); n > 0 {
		fmt.Fprintf(w, "Replaced %d malformed value(s) in %s with defaults\n", n, d.EntryTable)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w)
	fmt.Fprintln(tw, "This month\tAmount\t")
	for _, c := range v.MonthCategories {
		fmt.Fprintf(tw, "%s\t%s\t\n", categoryName(c.Name), core.FormatAmount(c.Amount))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", core.FormatAmount(v.MonthTotal))
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "All time\tAmount\t")
	for _, c := range v.Categories {
		fmt.Fprintf(tw, "%s\t%s\t\n", categoryName(c.Name), core.FormatAmount(c.Amount))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", core.FormatAmount(v.Total))
	_ = tw.Flush()

	if recent <= 0 || len(d.Entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tCategory\tAmount\tNote")
	for i, n := len(d.Entries)-1, 0; i >= 0 && n < recent; i, n = i-1, n+1 {
		e := d.Entries[i]
		date := e.Date.String()
		if date == "" {
			date = "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", date, categoryName(e.Category.String()), core.FormatAmount(e.Amount), e.Note)
	}
	_ = tw.Flush()
}

func categoryName(s string) string {
	if s == "" {
		return "(uncategorized)"
	}
	return s
}
