package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"quest-insights/internal/domain"
)

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

// InsightRepository implements the domain.InsightRepository interface using PostgreSQL
type InsightRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInsightRepository creates a new PostgreSQL insight repository
func NewInsightRepository(db *sql.DB, logger *slog.Logger) *InsightRepository {
	return &InsightRepository{
		db:     db,
		logger: logger,
	}
}

const insightColumns = `id, owner_id, url, title, description, image_url, tags, created_at`

// Create inserts a new insight
func (r *InsightRepository) Create(ctx context.Context, insight *domain.Insight) error {
	query := `
		INSERT INTO insights (id, owner_id, url, title, description, image_url, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		insight.ID,
		insight.OwnerID,
		insight.URL,
		insight.Title,
		insight.Description,
		insight.ImageURL,
		pq.Array(insight.Tags),
		insight.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("Insight already exists",
				"owner_id", insight.OwnerID,
				"url", insight.URL,
			)
			return fmt.Errorf("insight for %s: %w", insight.URL, domain.ErrConflict)
		}
		r.logger.Error("Failed to create insight",
			"error", err,
			"owner_id", insight.OwnerID,
			"url", insight.URL,
		)
		return fmt.Errorf("failed to create insight: %w", err)
	}

	r.logger.Debug("Insight created",
		"insight_id", insight.ID,
		"owner_id", insight.OwnerID,
	)
	return nil
}

// GetByOwnerAndURL finds an owner's insight for an exact URL
func (r *InsightRepository) GetByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE owner_id = $1 AND url = $2`

	insight, err := scanInsight(r.db.QueryRowContext(ctx, query, ownerID, url))
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
	query := `SELECT ` + insightColumns + ` FROM insights WHERE id = $1 AND owner_id = $2`

	insight, err := scanInsight(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Insight not found", "insight_id", id)
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query insight: %w", err)
	}
	return insight, nil
}

// ListByOwner returns an owner's insights, newest first
func (r *InsightRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE owner_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
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
	result, err := r.db.ExecContext(ctx, `DELETE FROM insights WHERE id = $1 AND owner_id = $2`, id, ownerID)
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

	r.logger.Debug("Insight deleted", "insight_id", id, "owner_id", ownerID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (*domain.Insight, error) {
	insight := &domain.Insight{}
	var tags []string

	err := row.Scan(
		&insight.ID,
		&insight.OwnerID,
		&insight.URL,
		&insight.Title,
		&insight.Description,
		&insight.ImageURL,
		pq.Array(&tags),
		&insight.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	insight.Tags = domain.NormalizeTags(tags)
	return insight, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
