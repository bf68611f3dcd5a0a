package http

import (
	"context"

	"jizhang/internal/aggregate"
	"jizhang/internal/core"
	"jizhang/internal/log"
	"jizhang/internal/services"

	"github.com/shopspring/decimal"
)

// recentLimit is how many of the newest entries the overview lists.
const recentLimit = 10

type pageData struct {
	Today      string
	Categories []core.Category
	Overview   overviewData
}

type categoryRow struct {
	Name   string
	Amount string
	Share  int // percent of the group total
}

type entryRow struct {
	Date     string
	Category string
	Amount   string
	Note     string
}

// overviewData is the dashboard partial. When Error is set nothing else is
// populated.
type overviewData struct {
	Error string

	Month          string
	EntryTable     string
	Budget         string
	BudgetFallback bool
	BudgetCreated  bool

	MonthTotal  string
	Remaining   string
	Overspent   bool
	Percent     int // clamped to [0, 100] for the bar
	RawPercent  int
	Status      string
	StatusLabel string

	MonthCategories []categoryRow
	Categories      []categoryRow
	Total           string

	Recent       []entryRow
	EntryCount   int
	WarningCount int
}

// overview turns one cycle's result into template data. A cycle error yields
// only the error panel.
func (s *Server) overview(ctx context.Context, d *services.Dashboard, err error) overviewData {
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Dashboard cycle failed", log.FieldError, err)
		return overviewData{Error: "Cannot load the ledger: " + err.Error()}
	}
	v := d.Views
	return overviewData{
		Month:          monthLabel(d.Now),
		EntryTable:     d.EntryTable,
		Budget:         core.FormatAmount(decimal.NewFromInt(int64(d.Budget))),
		BudgetFallback: d.BudgetFallback,
		BudgetCreated:  d.BudgetCreated,

		MonthTotal:  core.FormatAmount(v.MonthTotal),
		Remaining:   core.FormatAmount(v.Remaining),
		Overspent:   v.Remaining.IsNegative(),
		Percent:     aggregate.Percent(v.DisplayRatio),
		RawPercent:  aggregate.Percent(v.Ratio),
		Status:      string(v.Status),
		StatusLabel: v.Status.Label(),

		MonthCategories: categoryRows(v.MonthCategories, v.MonthTotal),
		Categories:      categoryRows(v.Categories, v.Total),
		Total:           core.FormatAmount(v.Total),

		Recent:       recentRows(d.Entries, recentLimit),
		EntryCount:   len(d.Entries),
		WarningCount: len(d.Warnings),
	}
}

func categoryRows(in []core.CategoryAmount, total decimal.Decimal) []categoryRow {
	out := make([]categoryRow, 0, len(in))
	for _, c := range in {
		share := 0
		if total.IsPositive() {
			share = aggregate.Percent(c.Amount.Div(total))
		}
		name := c.Name
		if name == "" {
			name = "(uncategorized)"
		}
		out = append(out, categoryRow{Name: name, Amount: core.FormatAmount(c.Amount), Share: share})
	}
	return out
}

// recentRows lists the last n entries, newest row first.
func recentRows(entries []core.Entry, n int) []entryRow {
	out := make([]entryRow, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		e := entries[i]
		date := e.Date.String()
		if date == "" {
			date = "?"
		}
		out = append(out, entryRow{
			Date:     date,
			Category: e.Category.String(),
			Amount:   core.FormatAmount(e.Amount),
			Note:     e.Note,
		})
	}
	return out
}
