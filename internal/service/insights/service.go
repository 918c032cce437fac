package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

// MetadataExtractor produces normalized metadata for a URL
type MetadataExtractor interface {
	// ExtractContext fails only when ctx is cancelled
	ExtractContext(ctx context.Context, rawURL string) (domain.Metadata, error)

	// Extract never fails
	Extract(ctx context.Context, rawURL string) domain.Metadata
}

// SaveResult is the outcome of SaveInsight
type SaveResult struct {
	Insight       *domain.Insight
	AlreadyExists bool
}

// Service is the gate between callers, metadata extraction and storage.
// It guarantees at most one insight per (owner, URL).
type Service struct {
	repo      domain.InsightRepository
	extractor MetadataExtractor
	logger    *slog.Logger
}

// NewService creates an insight service
func NewService(repo domain.InsightRepository, extractor MetadataExtractor, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		extractor: extractor,
		logger:    logger,
	}
}

// SaveInsight stores rawURL for owner, enriched with extracted metadata.
// Saving a URL the owner already has returns the existing insight with
// AlreadyExists set and performs no extraction.
func (s *Service) SaveInsight(ctx context.Context, ownerID, rawURL string, tags []string) (*SaveResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.ValidationError("owner is required")
	}
	if _, err := urldetector.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByOwnerAndURL(ctx, ownerID, rawURL)
	if err == nil {
		s.logger.Debug("Insight already saved",
			"owner_id", ownerID,
			"url", rawURL,
			"insight_id", existing.ID,
		)
		return &SaveResult{Insight: existing, AlreadyExists: true}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing insight: %w", err)
	}

	meta, err := s.extractor.ExtractContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("metadata extraction aborted: %w", err)
	}

	// The caller may have gone away while extraction finished
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save aborted: %w", err)
	}

	insight := domain.NewInsight(ownerID, rawURL, meta, tags)

	if err := s.repo.Create(ctx, insight); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			s.logger.Error("Failed to save insight",
				"error", err,
				"owner_id", ownerID,
				"url", rawURL,
			)
			return nil, fmt.Errorf("failed to save insight: %w", err)
		}

		// A concurrent save for the same pair won
		winner, err := s.repo.GetByOwnerAndURL(ctx, ownerID, rawURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing insight: %w", err)
		}
		return &SaveResult{Insight: winner, AlreadyExists: true}, nil
	}

	s.logger.Info("Insight saved",
		"insight_id", insight.ID,
		"owner_id", ownerID,
		"url", rawURL,
		"tags", len(insight.Tags),
	)

	return &SaveResult{Insight: insight}, nil
}

// ExtractMetadata returns metadata for rawURL without storing anything
func (s *Service) ExtractMetadata(ctx context.Context, rawURL string) domain.Metadata {
	return s.extractor.Extract(ctx, rawURL)
}

// GetInsights lists an owner's insights, newest first
func (s *Service) GetInsights(ctx context.Context, ownerID string) ([]*domain.Insight, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.ValidationError("owner is required")
	}

	insights, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	return insights, nil
}

// GetInsight returns one insight if it belongs to owner
func (s *Service) GetInsight(ctx context.Context, id uuid.UUID, ownerID string) (*domain.Insight, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.ValidationError("owner is required")
	}

	insight, err := s.repo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}
	return insight, nil
}

// DeleteInsight removes an insight. It returns domain.ErrNotFound when the
// insight does not exist or belongs to someone else.
func (s *Service) DeleteInsight(ctx context.Context, id uuid.UUID, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.ValidationError("owner is required")
	}

	if err := s.repo.DeleteByIDAndOwner(ctx, id, ownerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete insight: %w", err)
	}

	s.logger.Info("Insight deleted", "insight_id", id, "owner_id", ownerID)
	return nil
}
