//go:build integration

package google

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	ports "jizhang/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_GoogleSheetsFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	credsJSON := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	credsFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if credsJSON == "" && credsFile == "" {
		t.Skip("service account not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := Open(ctx, Config{
		SpreadsheetID:   spreadsheetID,
		CredentialsJSON: []byte(credsJSON),
		CredentialsFile: credsFile,
	})
	if err != nil {
		t.Fatalf("Failed to open spreadsheet: %v", err)
	}

	t.Run("ReadEntries", func(t *testing.T) {
		tbl, err := client.FirstTable(ctx)
		if err != nil {
			t.Fatalf("first table: %v", err)
		}
		rows, err := tbl.ReadAllRows(ctx)
		if err != nil {
			t.Fatalf("read rows: %v", err)
		}
		t.Logf("Read %d rows from %q", len(rows), tbl.Name())
	})

	t.Run("ScratchSheet", func(t *testing.T) {
		name := "it-" + strings.ReplaceAll(time.Now().Format("150405.000"), ".", "")
		if _, err := client.Table(ctx, name); !errors.Is(err, ports.ErrTableNotFound) {
			t.Fatalf("expected scratch sheet to be absent, got %v", err)
		}
		tbl, err := client.CreateTable(ctx, name, 2, 2)
		if err != nil {
			t.Fatalf("create scratch sheet: %v", err)
		}
		if err := tbl.WriteCell(ctx, 2, 2, 123); err != nil {
			t.Fatalf("write cell: %v", err)
		}
		v, err := tbl.ReadCell(ctx, 2, 2)
		if err != nil {
			t.Fatalf("read cell: %v", err)
		}
		t.Logf("Scratch sheet %q B2=%v (delete it manually)", name, v)
	})
}
