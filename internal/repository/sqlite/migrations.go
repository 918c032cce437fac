package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"quest-insights/internal/repository/migrate"
)

var dialect = migrate.Dialect{
	CreateTable: `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	Record: "INSERT INTO migrations (version, name) VALUES (?, ?)",
	Drop: []string{
		"DROP TABLE IF EXISTS insights",
		"DROP TABLE IF EXISTS migrations",
	},
}

var migrations = []migrate.Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS insights (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				url TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				image_url TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				UNIQUE(owner_id, url)
			);

			CREATE INDEX IF NOT EXISTS idx_insights_owner_created
			ON insights(owner_id, created_at DESC);
		`,
	},
}

// RunMigrations executes all pending database migrations
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	return migrate.Run(db, dialect, migrations, logger)
}

// GetMigrationStatus returns the highest applied migration version
func GetMigrationStatus(db *sql.DB) (int, error) {
	return migrate.Version(db)
}

// ResetDatabase drops the insights and migrations tables
func ResetDatabase(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrate.Reset(ctx, db, dialect, logger)
}
