// Package repository selects the insight storage backend from a database URL.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"quest-insights/internal/domain"
	"quest-insights/internal/repository/postgres"
	"quest-insights/internal/repository/sqlite"
)

// Backend names the storage engine behind a Store
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// Store bundles an open database with its insight repository
type Store struct {
	Backend  Backend
	DB       *sql.DB
	Insights domain.InsightRepository
	logger   *slog.Logger
}

// BackendFor picks Postgres for postgres:// URLs and SQLite for anything else,
// including libsql:// (Turso) URLs
func BackendFor(databaseURL string) Backend {
	lower := strings.ToLower(databaseURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Open connects to databaseURL and verifies the connection
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	backend := BackendFor(databaseURL)
	store := &Store{Backend: backend, logger: logger}

	switch backend {
	case BackendPostgres:
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store.DB = db
		store.Insights = postgres.NewInsightRepository(db, logger)

	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err := sqlite.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		store.DB = db
		store.Insights = sqlite.NewInsightRepository(db, logger)
	}

	logger.Info("Connected to database", "backend", backend)
	return store, nil
}

// Migrate applies pending schema migrations for the store's backend
func (s *Store) Migrate() error {
	if s.Backend == BackendPostgres {
		return postgres.RunMigrations(s.DB, s.logger)
	}
	return sqlite.RunMigrations(s.DB, s.logger)
}

// MigrationVersion reports the highest applied migration
func (s *Store) MigrationVersion() (int, error) {
	if s.Backend == BackendPostgres {
		return postgres.GetMigrationStatus(s.DB)
	}
	return sqlite.GetMigrationStatus(s.DB)
}

// Reset drops every table. Run Migrate afterwards to recreate the schema.
func (s *Store) Reset(ctx context.Context) error {
	if s.Backend == BackendPostgres {
		return postgres.ResetDatabase(ctx, s.DB, s.logger)
	}
	return sqlite.ResetDatabase(ctx, s.DB, s.logger)
}

// PingContext checks the database connection
func (s *Store) PingContext(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close releases the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}
