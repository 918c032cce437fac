package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"

	"quest-insights/internal/domain"
	"quest-insights/internal/repository/repotest"
)

// createTestLogger creates a logger for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestRepository(t *testing.T) domain.InsightRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := createTestLogger()
	if err := ResetDatabase(context.Background(), db, logger); err != nil {
		t.Fatalf("ResetDatabase() error = %v", err)
	}
	if err := RunMigrations(db, logger); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	return NewInsightRepository(db, logger)
}

func TestInsightRepository(t *testing.T) {
	repotest.RunContractTests(t, newTestRepository)
}

func TestRunMigrationsIdempotent(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	logger := createTestLogger()
	for i := 0; i < 2; i++ {
		if err := RunMigrations(db, logger); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}

	version, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("version = %d, want %d", version, migrations[len(migrations)-1].Version)
	}
}
