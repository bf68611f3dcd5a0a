package sheets

import (
	"errors"
	"testing"
)

func TestCellRef(t *testing.T) {
	cases := []struct {
		row, col int
		want     string
	}{
		{1, 1, "A1"},
		{2, 2, "B2"},
		{10, 26, "Z10"},
		{3, 27, "AA3"},
		{1, 52, "AZ1"},
	}
	for _, tc := range cases {
		if got := CellRef(tc.row, tc.col); got != tc.want {
			t.Errorf("CellRef(%d,%d) = %q, want %q", tc.row, tc.col, got, tc.want)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("googleapi: Error 403: forbidden")
	err := ConnectionError("open workbook", cause)
	if !errors.Is(err, ErrConnection) || !errors.Is(err, cause) {
		t.Fatalf("expected both sentinels in chain: %v", err)
	}

	werr := error(&WriteError{Op: "append", Table: "Sheet1", Err: cause})
	var target *WriteError
	if !errors.As(werr, &target) || target.Table != "Sheet1" {
		t.Fatalf("expected WriteError, got %v", werr)
	}
	if !errors.Is(werr, cause) {
		t.Fatalf("WriteError should unwrap to cause")
	}
}
