package sheets

import (
	"context"
	"errors"
	"fmt"
)

// Row is one record of a table keyed by its header cells. Values keep the
// type the backend produced (string, float64, int, ...).
type Row map[string]any

// Ports for outbound adapters.
type (
	// Workbook is an already-authorized handle on a spreadsheet.
	Workbook interface {
		// Table returns the table with the given name or ErrTableNotFound.
		Table(ctx context.Context, name string) (Table, error)
		// FirstTable returns the first table of the workbook.
		FirstTable(ctx context.Context) (Table, error)
		// CreateTable adds a new, empty table sized rows x cols.
		CreateTable(ctx context.Context, name string, rows, cols int) (Table, error)
	}

	// Table is a single sheet. Row and column indices are 1-based, matching
	// spreadsheet A1 notation.
	Table interface {
		Name() string
		// ReadAllRows returns every row below the header, keyed by header.
		ReadAllRows(ctx context.Context) ([]Row, error)
		// AppendRow appends values after the last non-empty row.
		AppendRow(ctx context.Context, values []any) error
		ReadCell(ctx context.Context, row, col int) (any, error)
		WriteCell(ctx context.Context, row, col int, value any) error
	}
)

var (
	// ErrTableNotFound is returned by Workbook.Table when no sheet has the name.
	ErrTableNotFound = errors.New("table not found")
	// ErrConnection marks failures to reach or authorize against the workbook.
	ErrConnection = errors.New("workbook connection failed")
)

// WriteError reports a failed append or cell write. Err carries the remote
// detail unchanged so it can be shown to the user.
type WriteError struct {
	Op    string
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s on %q failed: %v", e.Op, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConnectionError wraps err so that errors.Is(err, ErrConnection) holds while
// keeping the original detail in the message.
func ConnectionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

// CellRef formats a 1-based row/column pair in A1 notation, e.g. (2, 2) -> "B2".
func CellRef(row, col int) string {
	return ColumnName(col) + fmt.Sprint(row)
}

// ColumnName converts a 1-based column index to letters: 1 -> A, 27 -> AA.
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
