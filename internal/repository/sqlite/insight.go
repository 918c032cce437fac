package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"quest-insights/internal/domain"
)

// timeLayout is fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InsightRepository implements domain.InsightRepository on an embedded SQLite database
type InsightRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInsightRepository creates a SQLite insight repository
func NewInsightRepository(db *sql.DB, logger *slog.Logger) *InsightRepository {
	return &InsightRepository{db: db, logger: logger}
}

const insightColumns = `id, owner_id, url, title, description, image_url, tags, created_at`

// Create inserts a new insight
func (r *InsightRepository) Create(ctx context.Context, insight *domain.Insight) error {
	tags, err := json.Marshal(domain.NormalizeTags(insight.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.ID.String(),
		insight.OwnerID,
		insight.URL,
		insight.Title,
		insight.Description,
		insight.ImageURL,
		string(tags),
		insight.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insight for %s: %w", insight.URL, domain.ErrConflict)
		}
		r.logger.Error("Failed to create insight",
			"error", err,
			"owner_id", insight.OwnerID,
			"url", insight.URL,
		)
		return fmt.Errorf("failed to create insight: %w", err)
	}
	return nil
}

// GetByOwnerAndURL finds an owner's insight for an exact URL
func (r *InsightRepository) GetByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Insight, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+insightColumns+` FROM insights WHERE owner_id = ? AND url = ?`, ownerID, url)

	insight, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query insight by url: %w", err)
	}
	return insight, nil
}

// GetByIDAndOwner retrieves a single insight belonging to ownerID
func (r *InsightRepository) GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (*domain.Insight, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+insightColumns+` FROM insights WHERE id = ? AND owner_id = ?`, id.String(), ownerID)

	insight, err := scanInsight(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query insight: %w", err)
	}
	return insight, nil
}

// ListByOwner returns an owner's insights, newest first
func (r *InsightRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Insight, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+insightColumns+` FROM insights WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	insights := make([]*domain.Insight, 0)
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate insights: %w", err)
	}
	return insights, nil
}

// DeleteByIDAndOwner deletes an insight only if it belongs to ownerID
func (r *InsightRepository) DeleteByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM insights WHERE id = ? AND owner_id = ?`, id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete insight: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (*domain.Insight, error) {
	var (
		insight   domain.Insight
		id        string
		tagsJSON  string
		createdAt string
	)

	err := row.Scan(
		&id,
		&insight.OwnerID,
		&insight.URL,
		&insight.Title,
		&insight.Description,
		&insight.ImageURL,
		&tagsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if insight.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid insight id %q: %w", id, err)
	}
	if insight.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("invalid tags for insight %s: %w", id, err)
	}
	insight.Tags = domain.NormalizeTags(tags)

	return &insight, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
