package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	ports "jizhang/internal/sheets"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Scopes requested for the service account: spreadsheets for reads and
// writes, drive so that shared spreadsheets resolve.
var Scopes = []string{gsheet.SpreadsheetsScope, gsheet.DriveScope}

// Config describes how to reach one spreadsheet.
type Config struct {
	SpreadsheetID string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON []byte
	CredentialsFile string
	// Options are appended to the service options; tests use them to point
	// the client at a fake endpoint.
	Options []goption.ClientOption
}

// Client is a Workbook backed by a Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var _ ports.Workbook = (*Client)(nil)

// Open builds a Sheets service from cfg and checks that the spreadsheet is
// reachable. Any failure is reported as a connection error.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, ports.ConnectionError("open workbook", errors.New("missing spreadsheet id"))
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, ports.ConnectionError("sheets service", err)
	}

	c := NewWithService(svc, id)
	if _, err := c.sheetTitles(ctx); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Opened spreadsheet", "spreadsheet_id", id)
	return c, nil
}

// NewWithService wraps an existing service without contacting the API.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// With explicit client options (tests) credentials are not required.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if len(cfg.Options) > 0 && len(cfg.CredentialsJSON) == 0 && cfg.CredentialsFile == "" {
		return gsheet.NewService(ctx, cfg.Options...)
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scopes", Scopes)

	jwtConfig, err := gauth.JWTConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	// The oauth2 transport picks up the pooled client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	opts := append([]goption.ClientOption{goption.WithHTTPClient(jwtConfig.Client(ctx))}, cfg.Options...)

	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case len(cfg.CredentialsJSON) > 0:
		return cfg.CredentialsJSON, nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second, // Overall request timeout
	}
}

// sheetTitles lists sheet titles in tab order.
func (c *Client) sheetTitles(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, ports.ConnectionError("list sheets", errors.New("sheets service not initialized"))
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, ports.ConnectionError("read spreadsheet "+c.spreadsheetID, describe(err))
	}
	// The API lists sheets in tab order.
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (c *Client) Table(ctx context.Context, name string) (ports.Table, error) {
	titles, err := c.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range titles {
		if t == name {
			return &sheetTable{c: c, title: t}, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ports.ErrTableNotFound)
}

func (c *Client) FirstTable(ctx context.Context) (ports.Table, error) {
	titles, err := c.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, ports.ConnectionError("first table", ports.ErrTableNotFound)
	}
	return &sheetTable{c: c, title: titles[0]}, nil
}

// CreateTable adds a sheet at the end of the tab list.
func (c *Client) CreateTable(ctx context.Context, name string, rows, cols int) (ports.Table, error) {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title: name,
					GridProperties: &gsheet.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, &ports.WriteError{Op: "create table", Table: name, Err: describe(err)}
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", name, "rows", rows, "cols", cols)
	return &sheetTable{c: c, title: name}, nil
}

type sheetTable struct {
	c     *Client
	title string
}

func (t *sheetTable) Name() string { return t.title }

func (t *sheetTable) ReadAllRows(ctx context.Context) ([]ports.Row, error) {
	rng := a1Range(t.title, "")
	resp, err := t.c.svc.Spreadsheets.Values.Get(t.c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, ports.ConnectionError("read "+rng, describe(err))
	}
	return rowsFromValues(resp.Values), nil
}

// AppendRow uses the append endpoint so the remote side picks the row; two
// concurrent appends never target the same row.
func (t *sheetTable) AppendRow(ctx context.Context, values []any) error {
	rng := a1Range(t.title, "A1")
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := t.c.svc.Spreadsheets.Values.Append(t.c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return &ports.WriteError{Op: "append row", Table: t.title, Err: describe(err)}
	}
	return nil
}

func (t *sheetTable) ReadCell(ctx context.Context, row, col int) (any, error) {
	rng := a1Range(t.title, ports.CellRef(row, col))
	resp, err := t.c.svc.Spreadsheets.Values.Get(t.c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, ports.ConnectionError("read "+rng, describe(err))
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, nil
	}
	return resp.Values[0][0], nil
}

func (t *sheetTable) WriteCell(ctx context.Context, row, col int, value any) error {
	rng := a1Range(t.title, ports.CellRef(row, col))
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err := t.c.svc.Spreadsheets.Values.Update(t.c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return &ports.WriteError{Op: "write " + ports.CellRef(row, col), Table: t.title, Err: describe(err)}
	}
	return nil
}

// describe keeps the remote status and message of API errors readable.
func describe(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return fmt.Errorf("sheets API %d: %s: %w", gerr.Code, msg, err)
	}
	return err
}
