// Package export renders the ledger and its summaries as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"jizhang/internal/aggregate"
	"jizhang/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	EntriesSheet = "Entries"
	SummarySheet = "Summary"
)

var entryHeaders = []string{"Date", "Category", "Amount", "Note"}

// Report is the input of one export.
type Report struct {
	Entries []core.Entry
	Views   aggregate.Views
	Month   string // e.g. "2024-06"
}

// Build lays out the report in a new workbook. The caller must close it.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", EntriesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("money style: %w", err)
	}

	if err := writeEntries(f, r.Entries, headerStyle, moneyStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, r, headerStyle, moneyStyle); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write builds the report and streams it to w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// SaveAs builds the report and writes it to path.
func SaveAs(path string, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeEntries(f *excelize.File, entries []core.Entry, headerStyle, moneyStyle int) error {
	for i, h := range entryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(EntriesSheet, cell, h); err != nil {
			return fmt.Errorf("entries header: %w", err)
		}
	}
	if err := f.SetCellStyle(EntriesSheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("entries header style: %w", err)
	}
	_ = f.SetColWidth(EntriesSheet, "A", "A", 12)
	_ = f.SetColWidth(EntriesSheet, "B", "B", 16)
	_ = f.SetColWidth(EntriesSheet, "C", "C", 14)
	_ = f.SetColWidth(EntriesSheet, "D", "D", 40)

	for i, e := range entries {
		row := i + 2
		amount, _ := e.Amount.Float64()
		values := []any{e.Date.String(), e.Category.String(), amount, e.Note}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(EntriesSheet, cell, v); err != nil {
				return fmt.Errorf("entries row %d: %w", row, err)
			}
		}
	}
	if len(entries) > 0 {
		last := fmt.Sprintf("C%d", len(entries)+1)
		if err := f.SetCellStyle(EntriesSheet, "C2", last, moneyStyle); err != nil {
			return fmt.Errorf("amount style: %w", err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, r Report, headerStyle, moneyStyle int) error {
	v := r.Views
	set := func(cell string, value any) error {
		if err := f.SetCellValue(SummarySheet, cell, value); err != nil {
			return fmt.Errorf("summary %s: %w", cell, err)
		}
		return nil
	}
	num := func(d decimal.Decimal) float64 {
		x, _ := d.Float64()
		return x
	}

	rows := [][2]any{
		{"Month", r.Month},
		{"Monthly budget", v.Budget},
		{"Spent this month", num(v.MonthTotal)},
		{"Remaining", num(v.Remaining)},
		{"Utilization %", aggregate.Percent(v.Ratio)},
		{"Status", v.Status.Label()},
		{"All-time total", num(v.Total)},
	}
	for i, kv := range rows {
		if err := set(fmt.Sprintf("A%d", i+1), kv[0]); err != nil {
			return err
		}
		if err := set(fmt.Sprintf("B%d", i+1), kv[1]); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 20)
	_ = f.SetColWidth(SummarySheet, "B", "B", 16)

	start := len(rows) + 2
	if err := set(fmt.Sprintf("A%d", start), "Category"); err != nil {
		return err
	}
	if err := set(fmt.Sprintf("B%d", start), "Total"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", start), fmt.Sprintf("B%d", start), headerStyle); err != nil {
		return fmt.Errorf("summary header style: %w", err)
	}
	for i, c := range v.Categories {
		row := start + 1 + i
		if err := set(fmt.Sprintf("A%d", row), c.Name); err != nil {
			return err
		}
		if err := set(fmt.Sprintf("B%d", row), num(c.Amount)); err != nil {
			return err
		}
		_ = f.SetCellStyle(SummarySheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), moneyStyle)
	}
	return nil
}
