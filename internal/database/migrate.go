package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationFS holds the versioned schema. The server applies the up files
// idempotently at startup; cmd/migrate drives them through golang-migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

var ErrNoChange = migrate.ErrNoChange

type schemaStep struct {
	file   string
	tables []string
}

var schemaSteps = []schemaStep{
	{file: "migrations/001_initial.up.sql", tables: []string{"users", "refresh_tokens", "products"}},
	{file: "migrations/002_invoices.up.sql", tables: []string{"invoices"}},
}

// EnsureSchema applies each step whose tables are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	for _, step := range schemaSteps {
		exists, err := db.hasTables(ctx, step.tables)
		if err != nil {
			return fmt.Errorf("check tables for %s: %w", step.file, err)
		}
		if exists {
			continue
		}

		sql, err := fs.ReadFile(MigrationFS, step.file)
		if err != nil {
			return fmt.Errorf("read %s: %w", step.file, err)
		}

		slog.Info("applying schema step", "file", step.file)
		if _, err := db.Pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", step.file, err)
		}

		exists, err = db.hasTables(ctx, step.tables)
		if err != nil {
			return fmt.Errorf("re-check tables after %s: %w", step.file, err)
		}
		if !exists {
			return fmt.Errorf("schema step %s incomplete: required tables are still missing", step.file)
		}
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) hasTables(ctx context.Context, tables []string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, tables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(tables), nil
}

// Migrate moves the schema up or down using golang-migrate's version table.
// steps of zero means all the way; ErrNoChange is returned when the schema
// is already at the target.
func Migrate(dsn string, direction string, steps int) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	source, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case steps > 0 && direction == "up":
		err = m.Steps(steps)
	case steps > 0:
		err = m.Steps(-steps)
	case direction == "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil {
		return err
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		slog.Info("migration complete", "direction", direction, "version", version, "dirty", dirty)
	}
	return nil
}
