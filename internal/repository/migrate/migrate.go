// Package migrate applies versioned schema migrations through database/sql.
// Backends supply their own schema and the few statements whose syntax differs.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is one schema step. Versions must be strictly increasing.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Dialect holds the backend-specific bookkeeping statements
type Dialect struct {
	// CreateTable creates the migrations table if it is missing
	CreateTable string
	// Record inserts a (version, name) row
	Record string
	// Drop removes every table, migrations included
	Drop []string
}

// Run applies every migration newer than the recorded version, each in its
// own transaction.
func Run(db *sql.DB, dialect Dialect, migrations []Migration, logger *slog.Logger) error {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			return fmt.Errorf("migration %d (%s) is out of order", migrations[i].Version, migrations[i].Name)
		}
	}

	if _, err := db.Exec(dialect.CreateTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := Version(db)
	if err != nil {
		return err
	}
	logger.Debug("Current migration version", "version", current)

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logger.Info("Applying migration", "version", m.Version, "name", m.Name)
		if err := apply(db, dialect, m); err != nil {
			return err
		}
		applied++
	}

	if applied == 0 {
		logger.Debug("No migrations to apply")
	} else {
		logger.Info("Database migrations completed", "applied", applied)
	}
	return nil
}

func apply(db *sql.DB, dialect Dialect, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec(dialect.Record, m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// Version returns the highest applied migration version, 0 for a fresh schema
func Version(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration status: %w", err)
	}
	return version, nil
}

// Reset drops all tables in one transaction
func Reset(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	logger.Warn("Resetting database - all data will be lost")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range dialect.Drop {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset transaction: %w", err)
	}

	logger.Info("Database reset completed")
	return nil
}
