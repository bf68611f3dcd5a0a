package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the journal database at dbPath up to the latest
// write_attempts schema. An up-to-date database is not an error.
func RunMigrations(dbPath string) error {
	return applyMigrations(dbPath, migrationsFS, "migrations")
}

// applyMigrations runs every up migration found under dir in src. It uses its
// own connection because closing the migrate instance closes the database.
func applyMigrations(dbPath string, src fs.FS, dir string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open journal for migration: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	source, err := iofs.New(src, dir)
	if err != nil {
		return fmt.Errorf("journal migrations source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply journal migrations: %w", err)
	}
	return nil
}
