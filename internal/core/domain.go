package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the day-resolution layout used for entry rows.
const DateLayout = "2006-01-02"

// MaxNoteLength bounds a submitted note, counted in characters.
const MaxNoteLength = 200

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Shopping      Category = "Shopping"
	Entertainment Category = "Entertainment"
	Housing       Category = "Housing"
	Medical       Category = "Medical"
	Investment    Category = "Investment"
	Other         Category = "Other"
)

type (
	// Category is the label an entry is grouped under. Input is constrained to
	// Categories(); rows read back from the workbook may carry any string.
	Category string

	Date struct {
		time.Time
	}

	Entry struct {
		Date     Date
		Category Category
		Amount   decimal.Decimal
		Note     string
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyDate       = errors.New("date cannot be zero")
	ErrNoteTooLong     = errors.New("note too long (max 200 characters)")
)

var categories = []Category{Food, Transport, Shopping, Entertainment, Housing, Medical, Investment, Other}

// Categories returns the closed set of selectable categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c belongs to the selectable set.
func (c Category) Valid() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches s case-insensitively against the selectable set.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, k := range categories {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", ErrInvalidCategory
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrEmptyDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall clock date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// IsEmpty reports whether the date is the null marker left by a failed parse.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// InMonth reports whether d falls in the same calendar year and month as t.
// A null date is never in any month.
func (d Date) InMonth(t time.Time) bool {
	if d.IsEmpty() {
		return false
	}
	return d.Year() == t.Year() && d.Month() == int(t.Month())
}

// String formats the date as YYYY-MM-DD, or "" for the null marker.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(DateLayout)
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if utf8.RuneCountInString(e.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}
