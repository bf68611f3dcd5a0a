package main

import (
	"errors"
	"fmt"
	"time"

	"jizhang/internal/backend"
	"jizhang/internal/core"
	"jizhang/internal/services"

	"github.com/spf13/cobra"
)

var (
	addDate     string
	addCategory string
	addAmount   string
	addNote     string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record one expense",
	Example: `  jizhang add --category Food --amount 12.50 --note lunch
  jizhang add --date 2024-06-01 --category Housing --amount 900`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "Expense date YYYY-MM-DD (default today)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "One of the fixed categories")
	addCmd.Flags().StringVarP(&addAmount, "amount", "a", "", "Amount, e.g. 12.50")
	addCmd.Flags().StringVarP(&addNote, "note", "n", "", "Optional note")
	_ = addCmd.MarkFlagRequired("category")
	_ = addCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(addCmd)
}

func parseEntryFlags(today time.Time) (core.Entry, error) {
	date := core.DateOf(today)
	if addDate != "" {
		t, err := time.Parse(core.DateLayout, addDate)
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: date must be YYYY-MM-DD", services.ErrInvalidInput)
		}
		date = core.DateOf(t)
	}
	cat, err := core.ParseCategory(addCategory)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v (choose from %v)", services.ErrInvalidInput, err, core.Categories())
	}
	amount, err := core.ParseAmount(addAmount)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	e := core.Entry{Date: date, Category: cat, Amount: amount, Note: addNote}
	if err := e.Validate(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	return e, nil
}

func runAdd(cmd *cobra.Command, _ []string) error {
	e, err := parseEntryFlags(time.Now())
	if err != nil {
		return err
	}
	return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
		d, err := res.Service.AddEntry(cmd.Context(), e)
		if err != nil && !errors.Is(err, services.ErrReloadFailed) {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recorded %s %s %s\n", e.Date, e.Category, core.FormatAmount(e.Amount))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			return nil
		}
		printBudgetLine(out, d)
		return nil
	})
}
