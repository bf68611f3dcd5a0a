// Package aggregate derives spending summaries from a list of entries.
package aggregate

import (
	"time"

	"jizhang/internal/core"

	"github.com/shopspring/decimal"
)

// Status classifies budget utilization.
type Status string

const (
	StatusOnTrack Status = "on_track"
	StatusWarning Status = "warning"
	StatusOver    Status = "over_budget"
)

var (
	warnThreshold = decimal.RequireFromString("0.8")
	overThreshold = decimal.NewFromInt(1)
)

// Label returns the human readable status.
func (s Status) Label() string {
	switch s {
	case StatusOver:
		return "Over budget"
	case StatusWarning:
		return "Warning"
	default:
		return "On track"
	}
}

// Views holds every derived figure shown for one cycle.
type Views struct {
	Total      decimal.Decimal
	ByCategory map[string]decimal.Decimal
	// Categories is ByCategory in first-seen order.
	Categories []core.CategoryAmount

	Month           []core.Entry
	MonthTotal      decimal.Decimal
	MonthByCategory map[string]decimal.Decimal
	MonthCategories []core.CategoryAmount

	Budget    int
	Remaining decimal.Decimal
	// Ratio is MonthTotal / Budget, or 1 when Budget is zero.
	Ratio decimal.Decimal
	// DisplayRatio is Ratio clamped to [0, 1].
	DisplayRatio decimal.Decimal
	Status       Status
}

// Summarize computes Views for entries relative to the month containing now.
func Summarize(entries []core.Entry, budget int, now time.Time) Views {
	v := Views{Budget: budget}

	v.Categories, v.ByCategory, v.Total = group(entries)

	for _, e := range entries {
		if e.Date.InMonth(now) {
			v.Month = append(v.Month, e)
		}
	}
	v.MonthCategories, v.MonthByCategory, v.MonthTotal = group(v.Month)

	b := decimal.NewFromInt(int64(budget))
	v.Remaining = b.Sub(v.MonthTotal)
	v.Ratio = Ratio(v.MonthTotal, budget)
	v.DisplayRatio = clamp(v.Ratio)
	v.Status = ClassifySpend(v.MonthTotal, budget)
	return v
}

// Ratio returns spent / budget for display. A zero budget yields 1 so that
// any budget of zero reads as fully used. Status comes from ClassifySpend,
// never from this quotient.
func Ratio(spent decimal.Decimal, budget int) decimal.Decimal {
	if budget == 0 {
		return overThreshold
	}
	return spent.Div(decimal.NewFromInt(int64(budget)))
}

// ClassifySpend compares spent against the thresholds scaled to budget, so
// 15999.99 of 20000 is on track and 19999.99 is a warning.
func ClassifySpend(spent decimal.Decimal, budget int) Status {
	if budget == 0 {
		return StatusOver
	}
	b := decimal.NewFromInt(int64(budget))
	switch {
	case spent.GreaterThanOrEqual(b.Mul(overThreshold)):
		return StatusOver
	case spent.GreaterThanOrEqual(b.Mul(warnThreshold)):
		return StatusWarning
	default:
		return StatusOnTrack
	}
}

// Classify maps a utilization ratio to a Status. Thresholds are inclusive:
// 0.8 is a warning and 1.0 is over budget.
func Classify(ratio decimal.Decimal) Status {
	switch {
	case ratio.GreaterThanOrEqual(overThreshold):
		return StatusOver
	case ratio.GreaterThanOrEqual(warnThreshold):
		return StatusWarning
	default:
		return StatusOnTrack
	}
}

// group sums amounts by category string, keeping first-seen order.
func group(entries []core.Entry) ([]core.CategoryAmount, map[string]decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, e := range entries {
		name := e.Category.String()
		if _, ok := sums[name]; !ok {
			order = append(order, name)
			sums[name] = decimal.Zero
		}
		sums[name] = sums[name].Add(e.Amount)
		total = total.Add(e.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, core.CategoryAmount{Name: name, Amount: sums[name]})
	}
	return out, sums, total
}

func clamp(r decimal.Decimal) decimal.Decimal {
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(overThreshold) {
		return overThreshold
	}
	return r
}

// Percent renders a ratio as a whole percentage for display.
func Percent(r decimal.Decimal) int {
	return int(r.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
