package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"quest-insights/internal/repository/migrate"
)

// dialect holds the Postgres bookkeeping statements
var dialect = migrate.Dialect{
	CreateTable: `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
	Record: "INSERT INTO migrations (version, name) VALUES ($1, $2)",
	Drop: []string{
		"DROP TABLE IF EXISTS insights CASCADE",
		"DROP TABLE IF EXISTS migrations CASCADE",
	},
}

// migrations contains all database migrations in order
var migrations = []migrate.Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS insights (
				id UUID PRIMARY KEY,
				owner_id VARCHAR(255) NOT NULL,
				url TEXT NOT NULL,

				-- Extracted metadata, never null
				title VARCHAR(500) NOT NULL,
				description TEXT NOT NULL,
				image_url TEXT NOT NULL DEFAULT '',

				tags TEXT[] NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

				-- One record per owner and exact URL
				CONSTRAINT insights_owner_url_key UNIQUE(owner_id, url)
			);

			CREATE INDEX IF NOT EXISTS idx_insights_owner_created
			ON insights(owner_id, created_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "add_tags_index",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_insights_tags
			ON insights USING GIN(tags);
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
