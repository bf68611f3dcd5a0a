package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ports "jizhang/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets emulates the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	id      string
	order   []string
	grids   map[string][][]any
	failAll int // non-zero: every request answers with this status
	calls   []string
}

func newFakeSheets(id string) *fakeSheets {
	return &fakeSheets{id: id, grids: map[string][][]any{}}
}

func (f *fakeSheets) addSheet(title string, rows ...[]any) {
	f.order = append(f.order, title)
	f.grids[title] = rows
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.failAll != 0 {
		writeJSON(w, f.failAll, map[string]any{"error": map[string]any{
			"code": f.failAll, "message": "The caller does not have permission", "status": "PERMISSION_DENIED",
		}})
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	switch {
	case sub == "" && id == f.id && r.Method == http.MethodGet:
		sheets := make([]any, 0, len(f.order))
		for i, t := range f.order {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": i, "title": t, "index": i}})
		}
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id, "sheets": sheets})
	case sub == "" && id == f.id+":batchUpdate":
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			title := rq.AddSheet.Properties.Title
			if _, exists := f.grids[title]; exists {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
					"code": 400, "message": "A sheet with the name \"" + title + "\" already exists.",
				}})
				return
			}
			f.addSheet(title)
		}
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id})
	case id == f.id && strings.HasPrefix(sub, "values/"):
		f.serveValues(w, r, strings.TrimPrefix(sub, "values/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Requested entity was not found."}})
	}
}

func (f *fakeSheets) serveValues(w http.ResponseWriter, r *http.Request, rng string) {
	isAppend := strings.HasSuffix(rng, ":append")
	rng = strings.TrimSuffix(rng, ":append")
	sheet, cell, _ := strings.Cut(rng, "!")
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")
	grid, ok := f.grids[sheet]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "Unable to parse range: " + rng}})
		return
	}

	switch {
	case r.Method == http.MethodGet && cell == "":
		writeJSON(w, http.StatusOK, map[string]any{"range": rng, "majorDimension": "ROWS", "values": grid})
	case r.Method == http.MethodGet:
		row, col := parseCell(cell)
		resp := map[string]any{"range": rng, "majorDimension": "ROWS"}
		if row <= len(grid) && col <= len(grid[row-1]) {
			resp["values"] = [][]any{{grid[row-1][col-1]}}
		}
		writeJSON(w, http.StatusOK, resp)
	case isAppend:
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.grids[sheet] = append(grid, vr.Values...)
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id})
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		row, col := parseCell(cell)
		for len(grid) < row {
			grid = append(grid, []any{})
		}
		for len(grid[row-1]) < col {
			grid[row-1] = append(grid[row-1], "")
		}
		grid[row-1][col-1] = vr.Values[0][0]
		f.grids[sheet] = grid
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id, "updatedCells": 1})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

// parseCell handles single-letter columns, enough for the budget sheet.
func parseCell(cell string) (row, col int) {
	col = int(cell[0]-'A') + 1
	for _, c := range cell[1:] {
		row = row*10 + int(c-'0')
	}
	return row, col
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func openFake(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := Open(context.Background(), Config{
		SpreadsheetID: fake.id,
		Options:       []goption.ClientOption{goption.WithEndpoint(srv.URL + "/"), goption.WithoutAuthentication()},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestOpen_MissingSpreadsheetID(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	if !errors.Is(err, ports.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestOpen_InvalidCredentials(t *testing.T) {
	_, err := Open(context.Background(), Config{SpreadsheetID: "id", CredentialsJSON: []byte("invalid-json")})
	if !errors.Is(err, ports.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !strings.Contains(err.Error(), "parse service account key") {
		t.Errorf("expected key parse detail, got: %v", err)
	}
}

func TestOpen_PermissionDenied(t *testing.T) {
	fake := newFakeSheets("sheet-id")
	fake.failAll = http.StatusForbidden
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := Open(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		Options:       []goption.ClientOption{goption.WithEndpoint(srv.URL + "/"), goption.WithoutAuthentication()},
	})
	if !errors.Is(err, ports.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("remote detail should be kept, got %v", err)
	}
}

func TestClient_TablesAndRows(t *testing.T) {
	fake := newFakeSheets("sheet-id")
	fake.addSheet("Sheet1",
		[]any{"日期", "類別", "金額", "備註"},
		[]any{"2024-06-01", "Food", "$100", "lunch"},
	)
	c := openFake(t, fake)
	ctx := context.Background()

	first, err := c.FirstTable(ctx)
	if err != nil || first.Name() != "Sheet1" {
		t.Fatalf("first table: %v err=%v", first, err)
	}
	if _, err := c.Table(ctx, "budget"); !errors.Is(err, ports.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}

	if err := first.AppendRow(ctx, []any{"2024-06-02", "Transport", 30, ""}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := first.ReadAllRows(ctx)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", rows)
	}
	if rows[1]["類別"] != "Transport" || rows[1]["金額"] != 30.0 {
		t.Fatalf("unexpected appended row: %v", rows[1])
	}
}

func TestClient_CreateTableAndCells(t *testing.T) {
	fake := newFakeSheets("sheet-id")
	fake.addSheet("Sheet1", []any{"日期", "類別", "金額", "備註"})
	c := openFake(t, fake)
	ctx := context.Background()

	tbl, err := c.CreateTable(ctx, "budget", 2, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tbl.WriteCell(ctx, 2, 2, 20000); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := tbl.ReadCell(ctx, 2, 2)
	if err != nil || v != 20000.0 {
		t.Fatalf("read B2: %#v err=%v", v, err)
	}
	if v, err := tbl.ReadCell(ctx, 2, 1); err != nil || v != "" {
		t.Fatalf("padded cell: %#v err=%v", v, err)
	}

	// Creating the same sheet again surfaces the remote message.
	_, err = c.CreateTable(ctx, "budget", 2, 2)
	var werr *ports.WriteError
	if !errors.As(err, &werr) || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected WriteError with remote detail, got %v", err)
	}

	first, _ := c.FirstTable(ctx)
	if first.Name() != "Sheet1" {
		t.Fatalf("new sheet must not become the first table, got %s", first.Name())
	}
}

func TestClient_WriteErrorKeepsRemoteDetail(t *testing.T) {
	fake := newFakeSheets("sheet-id")
	fake.addSheet("Sheet1", []any{"日期", "類別", "金額", "備註"})
	c := openFake(t, fake)
	ctx := context.Background()
	tbl, _ := c.FirstTable(ctx)

	fake.mu.Lock()
	fake.failAll = http.StatusForbidden
	fake.mu.Unlock()

	err := tbl.AppendRow(ctx, []any{"2024-06-01", "Food", 1, ""})
	var werr *ports.WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if !strings.Contains(err.Error(), "does not have permission") {
		t.Fatalf("remote message missing: %v", err)
	}

	if _, err := tbl.ReadAllRows(ctx); !errors.Is(err, ports.ErrConnection) {
		t.Fatalf("read failure should be a connection error, got %v", err)
	}
}
