package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Kind is what a write attempt targeted.
type Kind string

const (
	KindEntry  Kind = "entry"
	KindBudget Kind = "budget"
)

// Status is the outcome of a write attempt.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Attempt is one journaled write against the workbook.
type Attempt struct {
	ID     string
	At     time.Time
	Kind   Kind
	Detail string
	Status Status
	Error  string
}

// Journal is a local, append-only record of write attempts. It is a
// diagnostic log only; the workbook stays the source of truth.
type Journal struct {
	db *sql.DB
}

// Open opens (and migrates) the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record stores a, assigning an ID and timestamp when missing.
func (j *Journal) Record(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	a.At = a.At.UTC()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO write_attempts (id, occurred_at, kind, detail, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.At.Format(timeLayout), string(a.Kind), a.Detail, string(a.Status), a.Error)
	if err != nil {
		return a, fmt.Errorf("insert write attempt: %w", err)
	}

	slog.DebugContext(ctx, "Journaled write attempt",
		"id", a.ID,
		"kind", a.Kind,
		"status", a.Status)
	return a, nil
}

// Recent returns up to limit attempts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, occurred_at, kind, detail, status, error
		   FROM write_attempts
		  ORDER BY occurred_at DESC, rowid DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query write attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a            Attempt
			at           string
			kind, status string
		)
		if err := rows.Scan(&a.ID, &at, &kind, &a.Detail, &status, &a.Error); err != nil {
			return nil, fmt.Errorf("scan write attempt: %w", err)
		}
		a.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", at, err)
		}
		a.Kind, a.Status = Kind(kind), Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// FailureCount returns the number of failed attempts since t.
func (j *Journal) FailureCount(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM write_attempts WHERE status = ? AND occurred_at >= ?`,
		string(StatusFailed), since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return n, nil
}
