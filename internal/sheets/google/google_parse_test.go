package google

import (
	"testing"
)

// Matrix shaped like a Values.Get response for the entry sheet.
func TestRowsFromValues(t *testing.T) {
	values := [][]interface{}{
		{"日期", "類別", "金額", "備註"},
		{"2024-06-01", "Food", "$100", "lunch"},
		{},
		{"2024-06-02", "Transport", 30.0},
		{"", "", ""},
		{"bad-date", "Other", "abc", "x"},
	}
	rows := rowsFromValues(values)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0]["金額"] != "$100" || rows[0]["備註"] != "lunch" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1]["金額"] != 30.0 {
		t.Fatalf("numeric cell should keep its type: %#v", rows[1]["金額"])
	}
	if rows[1]["備註"] != "" {
		t.Fatalf("trimmed trailing cell should be empty string, got %#v", rows[1]["備註"])
	}
}

func TestRowsFromValuesHeaderOnly(t *testing.T) {
	if rows := rowsFromValues([][]interface{}{{"日期", "類別", "金額", "備註"}}); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
	if rows := rowsFromValues(nil); rows != nil {
		t.Fatalf("expected nil for empty sheet")
	}
}

func TestA1Range(t *testing.T) {
	cases := []struct{ sheet, cell, want string }{
		{"budget", "B2", "'budget'!B2"},
		{"Sheet1", "", "'Sheet1'"},
		{"John's sheet", "A1", "'John''s sheet'!A1"},
	}
	for _, tc := range cases {
		if got := a1Range(tc.sheet, tc.cell); got != tc.want {
			t.Errorf("a1Range(%q,%q) = %q, want %q", tc.sheet, tc.cell, got, tc.want)
		}
	}
}
