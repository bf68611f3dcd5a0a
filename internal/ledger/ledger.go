// Package ledger loads the entry table into canonical entries and appends new
// entries to it.
//
// A Ledger is a snapshot: it is rebuilt from the workbook on every Load and is
// never updated in place.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"jizhang/internal/budget"
	"jizhang/internal/core"
	"jizhang/internal/normalize"
	"jizhang/internal/sheets"
)

// Header is written to an entry table that has no header row yet.
var Header = []any{"日期", "類別", "金額", "備註"}

// Ledger is the ordered list of entries read in one cycle.
type Ledger struct {
	table   string
	entries []core.Entry
	warns   []normalize.Warning
}

// Load reads and normalizes the entry table, the first table of wb.
func Load(ctx context.Context, wb sheets.Workbook) (*Ledger, error) {
	tbl, err := entryTable(ctx, wb)
	if err != nil {
		return nil, err
	}
	rows, err := tbl.ReadAllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read entry table %q: %w", tbl.Name(), err)
	}
	norm := normalize.Normalize(rows)
	if len(norm.Warnings) > 0 {
		slog.WarnContext(ctx, "Entry table has coerced cells",
			"table", tbl.Name(), "rows", norm.Len(), "coerced", len(norm.Warnings))
	}
	return &Ledger{table: tbl.Name(), entries: norm.Entries, warns: norm.Warnings}, nil
}

// Entries returns the entries in remote row order.
func (l *Ledger) Entries() []core.Entry { return l.entries }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Warnings returns the cells replaced during normalization.
func (l *Ledger) Warnings() []normalize.Warning { return l.warns }

// Table returns the name of the entry table the ledger was read from.
func (l *Ledger) Table() string { return l.table }

// Append validates e and writes it as one row. The caller reloads to observe
// the new entry.
func Append(ctx context.Context, wb sheets.Workbook, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	tbl, err := entryTable(ctx, wb)
	if err != nil {
		return err
	}

	hasHeader, err := tbl.ReadCell(ctx, 1, 1)
	if err != nil {
		return fmt.Errorf("read entry header: %w", err)
	}
	if hasHeader == nil || fmt.Sprint(hasHeader) == "" {
		if err := tbl.AppendRow(ctx, Header); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Wrote entry header", "table", tbl.Name())
	}

	if err := tbl.AppendRow(ctx, Row(e)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Appended entry",
		"table", tbl.Name(),
		"date", e.Date.String(),
		"category", e.Category.String(),
		"amount", e.Amount.String())
	return nil
}

// entryTable returns the first table, which must not be the budget table.
func entryTable(ctx context.Context, wb sheets.Workbook) (sheets.Table, error) {
	tbl, err := wb.FirstTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("open entry table: %w", err)
	}
	if tbl.Name() == budget.TableName {
		return nil, sheets.ConnectionError("open entry table", fmt.Errorf("first sheet is %q, expected the entry sheet", budget.TableName))
	}
	return tbl, nil
}

// Row renders e in persisted column order. The amount is written as a number.
func Row(e core.Entry) []any {
	amount, _ := e.Amount.Float64()
	return []any{e.Date.String(), e.Category.String(), amount, e.Note}
}
