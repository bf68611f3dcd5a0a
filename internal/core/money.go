// Package core provides money parsing and handling utilities.
//
// Amounts are decimal currency values without a currency attached. User input
// is parsed strictly here; tolerant parsing of stored cells lives in the
// normalize package.
package core

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount to a decimal value.
//
// A leading "$" and thousands separators are accepted. Negative values and
// anything that is not a plain decimal number are rejected with
// ErrInvalidAmount. The result is rounded to two decimal places.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("$1,200")   -> 1200, nil
//	ParseAmount("-3")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FormatAmount renders an amount for display, e.g. "$1,234.50".
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}
	f, _ := d.Round(2).Float64()
	s := "$" + humanize.FormatFloat("#,###.##", f)
	if neg {
		return "-" + s
	}
	return s
}
