package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jizhang/internal/sheets"
)

// DefaultEntrySheet is the name of the first sheet of a fresh store.
const DefaultEntrySheet = "Sheet1"

// EntryHeader is the header row seeded into the entry sheet.
var EntryHeader = []any{"日期", "類別", "金額", "備註"}

// Store is an in-process workbook. Tables keep creation order so that
// FirstTable matches spreadsheet tab order.
type Store struct {
	mu     sync.Mutex
	order  []string
	tables map[string][][]any
}

// Ensure interface conformance
var _ sheets.Workbook = (*Store)(nil)

// New returns a store holding an entry sheet with the canonical header.
func New() *Store {
	s := &Store{tables: map[string][][]any{}}
	s.addTable(DefaultEntrySheet, [][]any{append([]any(nil), EntryHeader...)})
	return s
}

// NewFromFiles seeds the entry sheet from base/seed_entries.csv when present.
// The CSV has no header; columns are date, category, amount, note.
func NewFromFiles(base string) *Store {
	s := New()
	for _, rec := range readCSV(filepath.Join(base, "seed_entries.csv")) {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		s.tables[DefaultEntrySheet] = append(s.tables[DefaultEntrySheet], row)
	}
	return s
}

func (s *Store) addTable(name string, cells [][]any) {
	s.order = append(s.order, name)
	s.tables[name] = cells
}

func (s *Store) Table(_ context.Context, name string) (sheets.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		return nil, fmt.Errorf("%q: %w", name, sheets.ErrTableNotFound)
	}
	return &table{s: s, name: name}, nil
}

func (s *Store) FirstTable(_ context.Context) (sheets.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, sheets.ConnectionError("first table", sheets.ErrTableNotFound)
	}
	return &table{s: s, name: s.order[0]}, nil
}

// CreateTable adds an empty sheet. It fails if the name is already taken,
// like the Sheets API does.
func (s *Store) CreateTable(_ context.Context, name string, rows, cols int) (sheets.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return nil, fmt.Errorf("a sheet with the name %q already exists", name)
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid table size %dx%d", rows, cols)
	}
	s.addTable(name, nil)
	return &table{s: s, name: name}, nil
}

// TableNames returns sheet names in tab order.
func (s *Store) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Cells returns a copy of the raw grid of a sheet, header included.
func (s *Store) Cells(name string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.tables[name]
	out := make([][]any, len(src))
	for i, r := range src {
		out[i] = append([]any(nil), r...)
	}
	return out
}

type table struct {
	s    *Store
	name string
}

func (t *table) Name() string { return t.name }

func (t *table) ReadAllRows(_ context.Context) ([]sheets.Row, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cells := t.s.tables[t.name]
	if len(cells) == 0 {
		return nil, nil
	}
	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}
	var out []sheets.Row
	for _, r := range cells[1:] {
		if isBlank(r) {
			continue
		}
		row := sheets.Row{}
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(r) {
				row[h] = r[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (t *table) AppendRow(_ context.Context, values []any) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cells := t.s.tables[t.name]
	last := len(cells)
	for last > 0 && isBlank(cells[last-1]) {
		last--
	}
	t.s.tables[t.name] = append(cells[:last], append([]any(nil), values...))
	return nil
}

func (t *table) ReadCell(_ context.Context, row, col int) (any, error) {
	if row < 1 || col < 1 {
		return nil, fmt.Errorf("invalid cell %d,%d", row, col)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cells := t.s.tables[t.name]
	if row > len(cells) || col > len(cells[row-1]) {
		return nil, nil
	}
	return cells[row-1][col-1], nil
}

func (t *table) WriteCell(_ context.Context, row, col int, value any) error {
	if row < 1 || col < 1 {
		return &sheets.WriteError{Op: "write cell", Table: t.name, Err: fmt.Errorf("invalid cell %d,%d", row, col)}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cells := t.s.tables[t.name]
	for len(cells) < row {
		cells = append(cells, nil)
	}
	for len(cells[row-1]) < col {
		cells[row-1] = append(cells[row-1], "")
	}
	cells[row-1][col-1] = value
	t.s.tables[t.name] = cells
	return nil
}

func isBlank(r []any) bool {
	for _, v := range r {
		if v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	recs, err := r.ReadAll()
	if err != nil {
		return nil
	}
	return recs
}
