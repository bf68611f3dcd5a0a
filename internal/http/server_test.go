package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"jizhang/internal/core"
	"jizhang/internal/log"
	"jizhang/internal/services"
	"jizhang/internal/sheets"
	"jizhang/internal/sheets/memory"

	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := services.NewExpenseService(store, services.WithClock(func() time.Time { return fixedNow }))
	opts.Logger = quietLogger()
	opts.Now = func() time.Time { return fixedNow }
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, store
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// failingService returns err from every call.
type failingService struct{ err error }

func (f failingService) Dashboard(context.Context) (*services.Dashboard, error) { return nil, f.err }
func (f failingService) Budget(context.Context) (int, bool, error)             { return 0, false, f.err }
func (f failingService) AddEntry(context.Context, core.Entry) (*services.Dashboard, error) {
	return nil, f.err
}
func (f failingService) SetBudget(context.Context, int) (*services.Dashboard, error) {
	return nil, f.err
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Record expense", "Monthly budget", `value="2024-06-15"`, "Investment", "$20,000.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing: %v", rr.Header())
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Errorf("request id not echoed")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	if rr := do(srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestRequestIDIsKept(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestCreateEntryValidationAndSuccess(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	if rr := do(srv, http.MethodGet, "/expenses", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	if rr := do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Food&amount=abc"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad amount, got %d", rr.Code)
	}
	if rr := do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Pets&amount=1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad category, got %d", rr.Code)
	}
	if got := len(store.Cells(memory.DefaultEntrySheet)); got != 1 {
		t.Fatalf("rejected input must not write, sheet has %d rows", got)
	}

	rr := do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Food&amount=100&note=lunch")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, "entry:created") || !strings.Contains(trig, "form:reset") {
		t.Fatalf("unexpected triggers: %s", trig)
	}
	body := rr.Body.String()
	for _, want := range []string{"lunch", "$100.00", "On track"} {
		if !strings.Contains(body, want) {
			t.Errorf("overview missing %q: %s", want, body)
		}
	}
	if got := len(store.Cells(memory.DefaultEntrySheet)); got != 2 {
		t.Fatalf("expected header + 1 row, got %d", got)
	}
}

func TestSetBudget(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	if rr := do(srv, http.MethodPost, "/budget", "amount=-5"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Food&amount=90")
	rr := do(srv, http.MethodPost, "/budget", "amount=100")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "budget:updated") {
		t.Fatalf("missing budget trigger: %s", rr.Header().Get("HX-Trigger"))
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$100.00") || !strings.Contains(body, "status-warning") || !strings.Contains(body, "90% used") {
		t.Fatalf("overview does not reflect new budget: %s", body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "write error keeps remote detail",
			err:    &sheets.WriteError{Op: "append row", Table: "Sheet1", Err: errors.New("sheets API 403: <b>denied</b>")},
			status: http.StatusBadGateway,
			detail: "&lt;b&gt;denied&lt;/b&gt;",
		},
		{
			name:   "connection error",
			err:    sheets.ConnectionError("read spreadsheet", errors.New("no route")),
			status: http.StatusServiceUnavailable,
			detail: "Cannot reach the spreadsheet",
		},
		{
			name:   "invalid input",
			err:    services.ErrInvalidInput,
			status: http.StatusUnprocessableEntity,
			detail: "invalid input",
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			detail: "Unexpected error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", failingService{err: tt.err}, Options{Logger: quietLogger()})
			defer srv.rateLimiter.stop()

			rr := do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Food&amount=1")
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d", rr.Code, tt.status)
			}
			if !strings.Contains(rr.Body.String(), tt.detail) {
				t.Fatalf("body %q missing %q", rr.Body.String(), tt.detail)
			}
		})
	}
}

func TestConnectionErrorRendersPanel(t *testing.T) {
	err := sheets.ConnectionError("read spreadsheet", errors.New("403 forbidden"))
	srv := NewServer(":0", failingService{err: err}, Options{Logger: quietLogger()})
	defer srv.rateLimiter.stop()

	rr := do(srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `class="error panel"`) || !strings.Contains(body, "403 forbidden") {
		t.Fatalf("missing error panel: %s", body)
	}
	if strings.Contains(body, "This month by category") {
		t.Fatalf("dependent views must not render on connection error")
	}
	if !strings.Contains(body, "Record expense") {
		t.Fatalf("form should still render")
	}

	if rr := do(srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	do(srv, http.MethodPost, "/expenses", "date=2024-06-01&category=Food&amount=100")

	rr := do(srv, http.MethodGet, "/export.xlsx", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("content type %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "jizhang-2024-06.xlsx") {
		t.Fatalf("disposition %q", rr.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Entries")
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, Options{WritesPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(srv, http.MethodPost, "/budget", "amount=100"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(srv, http.MethodPost, "/budget", "amount=100")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("missing Retry-After")
	}
	// Reads are not limited.
	if rr := do(srv, http.MethodGet, "/ui/overview", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, got %d", rr.Code)
	}
	if srv.SecurityStats().RateLimitHits != 1 {
		t.Fatalf("expected one rate limit hit, got %+v", srv.SecurityStats())
	}
}

func TestTemplateParseErrorPath(t *testing.T) {
	srv, _ := newTestServer(t, Options{Templates: fstest.MapFS{}})
	rr := do(srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing templates, got %d", rr.Code)
	}
}

func TestSuspiciousRequestIsCounted(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	do(srv, http.MethodGet, "/.env", "")
	if srv.SecurityStats().SuspiciousRequests != 1 {
		t.Fatalf("expected suspicious request to be counted: %+v", srv.SecurityStats())
	}
}

func TestSavedWriteWithFailedReloadIsNotAnError(t *testing.T) {
	stale := fmt.Errorf("%w: %w", services.ErrReloadFailed,
		sheets.ConnectionError("read entry rows", errors.New("network down")))
	srv := NewServer(":0", failingService{err: stale}, Options{Logger: quietLogger()})
	defer srv.rateLimiter.stop()

	tests := []struct {
		path, body, trigger string
	}{
		{"/expenses", "date=2024-06-01&category=Food&amount=1", "entry:created"},
		{"/budget", "amount=500", "budget:updated"},
	}
	for _, tt := range tests {
		rr := do(srv, http.MethodPost, tt.path, tt.body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d, a saved write must not look failed", tt.path, rr.Code)
		}
		trig := rr.Header().Get("HX-Trigger")
		if !strings.Contains(trig, tt.trigger) || !strings.Contains(trig, `"type":"warning"`) || !strings.Contains(trig, "Saved.") {
			t.Fatalf("%s: triggers %s", tt.path, trig)
		}
		if !strings.Contains(rr.Body.String(), `class="error panel"`) {
			t.Fatalf("%s: expected stale overview panel: %s", tt.path, rr.Body.String())
		}
	}
}
