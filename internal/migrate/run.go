// Package migrate applies the worker's schema migrations from SQL files
// embedded at build time, so the binary can bring any database up to date
// without shipping migration files alongside it.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const ledgerTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Run applies every embedded migration that has not been recorded in
// schema_migrations yet, in filename order. Reruns are no-ops.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ledgerTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	logger := slog.Default().With("component", "migrations")
	for _, file := range files {
		if applyErr := apply(ctx, db, logger, file); applyErr != nil {
			return applyErr
		}
	}
	return nil
}

// migrationFiles lists the embedded .sql files sorted by name. The numeric
// prefix convention (0001_..., 0002_...) makes lexical order the apply order.
func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func alreadyApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var applied bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return applied, nil
}

// apply runs one migration file and records its version inside the same
// transaction, so a failed statement leaves no ledger entry behind.
func apply(ctx context.Context, db *sql.DB, logger *slog.Logger, file string) error {
	version := strings.TrimSuffix(file, ".sql")

	applied, err := alreadyApplied(ctx, db, version)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	stmt, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", version)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "migration rollback failed", "version", version, "error", rbErr)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, string(stmt)); execErr != nil {
		return fmt.Errorf("exec migration %s: %w", file, execErr)
	}
	if _, recErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, version); recErr != nil {
		return fmt.Errorf("record migration %s: %w", file, recErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %s: %w", file, commitErr)
	}
	return nil
}
