// Package normalize turns raw, loosely typed rows read from the workbook into
// canonical expense entries.
//
// Normalization never fails. Cells that cannot be coerced fall back to a
// neutral value (zero amount, null date) and are reported as Warnings on the
// resulting Table.
package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"jizhang/internal/core"
	"jizhang/internal/sheets"

	"github.com/shopspring/decimal"
)

// Canonical column names.
const (
	ColDate     = "date"
	ColCategory = "category"
	ColAmount   = "amount"
	ColNote     = "note"
)

// Columns lists the canonical columns in persisted order.
var Columns = []string{ColDate, ColCategory, ColAmount, ColNote}

// aliases maps lower-cased header cells to canonical columns.
var aliases = map[string]string{
	"date": ColDate, "日期": ColDate,
	"category": ColCategory, "類別": ColCategory, "类别": ColCategory,
	"amount": ColAmount, "金額": ColAmount, "金额": ColAmount,
	"note": ColNote, "notes": ColNote, "備註": ColNote, "备注": ColNote,
}

// currencyNoise matches the currency symbol and thousands separators.
var currencyNoise = regexp.MustCompile(`[$,]`)

// Month and day layouts accept both 2024-6-1 and 2024-06-01.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04:05",
	time.RFC3339,
}

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

type (
	// AmountResult is the outcome of coercing one amount cell.
	AmountResult struct {
		Value   decimal.Decimal
		Coerced bool
	}

	// DateResult is the outcome of coercing one date cell. Value is the zero
	// Date when Valid is false.
	DateResult struct {
		Value core.Date
		Valid bool
	}

	// Warning records a cell that was replaced by its fallback value.
	Warning struct {
		Row    int // 0-based index into Table.Entries
		Column string
		Raw    any
	}

	// Table is the canonical form of the entry sheet.
	Table struct {
		Columns  []string
		Entries  []core.Entry
		Warnings []Warning
	}
)

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s %q replaced by default", w.Row+1, w.Column, fmt.Sprint(w.Raw))
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.Entries) }

// Normalize maps every row to an Entry, keeping row order.
func Normalize(rows []sheets.Row) *Table {
	t := &Table{
		Columns: append([]string(nil), Columns...),
		Entries: make([]core.Entry, 0, len(rows)),
	}
	for i, row := range rows {
		fields := canonical(row)

		date := ParseDate(fields[ColDate])
		if !date.Valid {
			t.warn(i, ColDate, fields[ColDate])
		}
		amount := ParseAmount(fields[ColAmount])
		if amount.Coerced {
			t.warn(i, ColAmount, fields[ColAmount])
		}

		t.Entries = append(t.Entries, core.Entry{
			Date:     date.Value,
			Category: core.Category(text(fields[ColCategory])),
			Amount:   amount.Value,
			Note:     text(fields[ColNote]),
		})
	}
	return t
}

func (t *Table) warn(row int, col string, raw any) {
	w := Warning{Row: row, Column: col, Raw: raw}
	t.Warnings = append(t.Warnings, w)
	slog.Debug("Coerced cell", "row", row+1, "column", col, "raw", fmt.Sprint(raw))
}

// canonical re-keys a row by canonical column name. Unknown headers are
// dropped; the first matching header wins.
func canonical(row sheets.Row) map[string]any {
	out := make(map[string]any, len(Columns))
	for k, v := range row {
		col, ok := aliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			continue
		}
		if _, seen := out[col]; !seen {
			out[col] = v
		}
	}
	return out
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ParseAmount coerces a cell to a non-negative decimal. Unparseable, empty or
// negative input yields zero with Coerced set.
func ParseAmount(v any) AmountResult {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return AmountResult{Value: decimal.Zero, Coerced: true}
	case decimal.Decimal:
		d = x
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return AmountResult{Value: decimal.Zero, Coerced: true}
		}
		d = decimal.NewFromFloat(x)
	default:
		s := strings.TrimSpace(currencyNoise.ReplaceAllString(fmt.Sprint(x), ""))
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return AmountResult{Value: decimal.Zero, Coerced: true}
		}
		d = parsed
	}
	if d.IsNegative() {
		return AmountResult{Value: decimal.Zero, Coerced: true}
	}
	return AmountResult{Value: d}
}

// ParseDate coerces a cell to a calendar day.
func ParseDate(v any) DateResult {
	switch x := v.(type) {
	case nil:
		return DateResult{}
	case time.Time:
		return DateResult{Value: core.DateOf(x), Valid: !x.IsZero()}
	case core.Date:
		return DateResult{Value: x, Valid: !x.IsEmpty()}
	case float64:
		return fromSerial(x)
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return DateResult{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateResult{Value: core.DateOf(t), Valid: true}
		}
	}
	return DateResult{}
}

func fromSerial(days float64) DateResult {
	if days < 1 || math.IsNaN(days) || math.IsInf(days, 0) {
		return DateResult{}
	}
	t := serialEpoch.AddDate(0, 0, int(math.Floor(days)))
	return DateResult{Value: core.DateOf(t), Valid: true}
}
