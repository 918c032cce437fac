package domain

import (
	"context"

	"github.com/google/uuid"
)

// InsightRepository defines the storage operations the insight core depends on
type InsightRepository interface {
	// Create inserts a new insight; returns ErrConflict if (owner, url) already exists
	Create(ctx context.Context, insight *Insight) error

	// GetByOwnerAndURL finds the insight for an owner and exact URL (for duplicate detection)
	GetByOwnerAndURL(ctx context.Context, ownerID, url string) (*Insight, error)

	// GetByIDAndOwner retrieves a single insight scoped to its owner
	GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (*Insight, error)

	// ListByOwner returns all of an owner's insights, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*Insight, error)

	// DeleteByIDAndOwner removes an insight; returns ErrNotFound when nothing matched
	DeleteByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) error
}

// MetadataCache is a key/value store of extracted metadata keyed by exact URL
type MetadataCache interface {
	Get(key string) (Metadata, bool)
	Set(key string, value Metadata)
}
