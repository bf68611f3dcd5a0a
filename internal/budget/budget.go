// Package budget keeps the single monthly budget value in a dedicated table
// of the workbook.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"jizhang/internal/sheets"

	"github.com/shopspring/decimal"
)

const (
	// TableName is the name of the budget table.
	TableName = "budget"
	// Default is used when the table is new or B2 cannot be read as an integer.
	Default = 20000

	valueRow = 2
	valueCol = 2
)

// ErrInvalidBudget is returned by Update for negative values.
var ErrInvalidBudget = errors.New("budget must be a non-negative integer")

// Handle refers to the budget table of one workbook for a single cycle.
type Handle struct {
	Table sheets.Table
	// Created is set when this cycle created the table.
	Created bool
	// Fallback is set when B2 was empty or malformed and Default was used.
	Fallback bool
}

// Store reads and writes the budget table.
type Store struct {
	logger *slog.Logger
}

// NewStore returns a Store logging through logger, or slog.Default when nil.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Ensure returns the budget table, creating and seeding it on first use.
// The check and the create are not atomic; two first-time callers may race
// and the loser gets the create error.
func (s *Store) Ensure(ctx context.Context, wb sheets.Workbook) (Handle, error) {
	tbl, err := wb.Table(ctx, TableName)
	if err == nil {
		return Handle{Table: tbl}, nil
	}
	if !errors.Is(err, sheets.ErrTableNotFound) {
		return Handle{}, err
	}

	tbl, err = wb.CreateTable(ctx, TableName, 2, 2)
	if err != nil {
		var werr *sheets.WriteError
		if errors.As(err, &werr) {
			return Handle{}, err
		}
		return Handle{}, &sheets.WriteError{Op: "create table", Table: TableName, Err: err}
	}
	seed := []struct {
		row, col int
		v        any
	}{
		{1, 1, "Item"}, {1, 2, "Amount"},
		{2, 1, "Monthly Budget"}, {valueRow, valueCol, Default},
	}
	for _, c := range seed {
		if err := tbl.WriteCell(ctx, c.row, c.col, c.v); err != nil {
			return Handle{}, err
		}
	}
	s.logger.InfoContext(ctx, "Created budget table", "table", TableName, "monthly_budget", Default)
	return Handle{Table: tbl, Created: true}, nil
}

// Load ensures the table exists and returns the current monthly budget.
// A malformed value cell yields Default and never an error.
func (s *Store) Load(ctx context.Context, wb sheets.Workbook) (Handle, int, error) {
	h, err := s.Ensure(ctx, wb)
	if err != nil {
		return Handle{}, 0, err
	}
	raw, err := h.Table.ReadCell(ctx, valueRow, valueCol)
	if err != nil {
		return Handle{}, 0, err
	}
	v, ok := ParseValue(raw)
	if !ok {
		s.logger.WarnContext(ctx, "Budget cell unreadable, using default",
			"cell", sheets.CellRef(valueRow, valueCol), "raw", fmt.Sprint(raw), "default", Default)
		h.Fallback = true
		return h, Default, nil
	}
	return h, v, nil
}

// Update overwrites the budget value. Concurrent updates are last-writer-wins.
func (s *Store) Update(ctx context.Context, wb sheets.Workbook, v int) error {
	if v < 0 {
		return fmt.Errorf("%d: %w", v, ErrInvalidBudget)
	}
	h, err := s.Ensure(ctx, wb)
	if err != nil {
		return err
	}
	if err := h.Table.WriteCell(ctx, valueRow, valueCol, v); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Updated monthly budget", "monthly_budget", v)
	return nil
}

// ParseValue reads an integer budget from a cell. Integer-valued numbers such
// as 20000.0 and currency strings such as "$20,000" are accepted.
func ParseValue(raw any) (int, bool) {
	var d decimal.Decimal
	switch x := raw.(type) {
	case nil:
		return 0, false
	case int:
		return x, x >= 0
	case int64:
		d = decimal.NewFromInt(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		d = decimal.NewFromFloat(x)
	default:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(fmt.Sprint(x)))
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		d = parsed
	}
	if !d.IsInteger() || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, false
	}
	return int(d.IntPart()), true
}
