package extractor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

// Strategy extracts a metadata triple for one kind of URL.
// On failure a strategy returns its best partial result together with the error.
type Strategy interface {
	Extract(ctx context.Context, rawURL string, match urldetector.Match) (domain.Metadata, error)
}

// FallbackProvider is implemented by strategies with a deterministic fallback
// that does not depend on the network.
type FallbackProvider interface {
	Fallback(rawURL string, match urldetector.Match) domain.Metadata
}

// GenericStrategy fetches the page and reads Open Graph and standard HTML tags
type GenericStrategy struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewGenericStrategy creates the strategy used for any URL without a provider
func NewGenericStrategy(fetcher Fetcher, logger *slog.Logger) *GenericStrategy {
	return &GenericStrategy{fetcher: fetcher, logger: logger}
}

// Extract fetches rawURL and parses its metadata tags
func (s *GenericStrategy) Extract(ctx context.Context, rawURL string, _ urldetector.Match) (domain.Metadata, error) {
	doc, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return domain.Metadata{}, err
	}

	meta, err := ParseHTML(doc.Body, doc.ContentType, rawURL)
	if err != nil {
		return domain.Metadata{}, err
	}

	s.logger.Debug("Parsed page metadata",
		"url", rawURL,
		"has_title", meta.Title != "",
		"has_description", meta.Description != "",
		"has_image", meta.ImageURL != "",
	)

	return meta, nil
}

// Router classifies URLs and dispatches them to the matching strategy
type Router struct {
	detector   *urldetector.Detector
	generic    Strategy
	strategies map[urldetector.Provider]Strategy
	logger     *slog.Logger
	mu         sync.RWMutex
}

// NewRouter creates a router. URLs without a registered provider go to generic.
func NewRouter(detector *urldetector.Detector, generic Strategy, logger *slog.Logger) *Router {
	return &Router{
		detector:   detector,
		generic:    generic,
		strategies: make(map[urldetector.Provider]Strategy),
		logger:     logger,
	}
}

// Handle registers the strategy for a provider
func (r *Router) Handle(provider urldetector.Provider, strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[provider] = strategy
}

func (r *Router) strategyFor(rawURL string) (Strategy, urldetector.Match) {
	match := r.detector.Detect(rawURL)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if strategy, ok := r.strategies[match.Provider]; ok {
		return strategy, match
	}
	return r.generic, urldetector.Match{Provider: urldetector.ProviderGeneric}
}

// Route extracts metadata for rawURL. Strategy failures are absorbed: the
// strategy's partial result is returned with degraded set. Only cancellation
// of ctx is returned as an error.
func (r *Router) Route(ctx context.Context, rawURL string) (meta domain.Metadata, degraded bool, err error) {
	strategy, match := r.strategyFor(rawURL)

	meta, err = strategy.Extract(ctx, rawURL, match)
	if err == nil {
		return meta, false, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return r.fallback(strategy, rawURL, match), true, ctxErr
	}

	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		r.logger.Info("Extraction degraded to fallback",
			"url", rawURL,
			"provider", match.Provider,
			"kind", fetchErr.Kind,
			"status_code", fetchErr.StatusCode,
		)
	} else {
		r.logger.Info("Extraction degraded to fallback",
			"url", rawURL,
			"provider", match.Provider,
			"error", err,
		)
	}

	if provider, ok := strategy.(FallbackProvider); ok {
		return provider.Fallback(rawURL, match), true, nil
	}
	return meta, true, nil
}

// Fallback returns the network-free result for rawURL
func (r *Router) Fallback(rawURL string) domain.Metadata {
	strategy, match := r.strategyFor(rawURL)
	return r.fallback(strategy, rawURL, match)
}

func (r *Router) fallback(strategy Strategy, rawURL string, match urldetector.Match) domain.Metadata {
	if provider, ok := strategy.(FallbackProvider); ok {
		return provider.Fallback(rawURL, match)
	}
	return domain.Metadata{}
}
