package extractor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

// Extractor turns a URL into a normalized metadata triple.
// Results of successful extractions are cached by exact URL, and concurrent
// requests for the same URL share one extraction.
type Extractor struct {
	router *Router
	cache  domain.MetadataCache
	group  singleflight.Group
	logger *slog.Logger
}

type routeResult struct {
	meta     domain.Metadata
	degraded bool
}

// New creates an extractor. cache may be nil to disable caching.
func New(router *Router, cache domain.MetadataCache, logger *slog.Logger) *Extractor {
	return &Extractor{
		router: router,
		cache:  cache,
		logger: logger,
	}
}

// Options configures the standard pipeline built by NewDefault
type Options struct {
	UserAgent      string
	FetchTimeout   time.Duration
	RatePerHost    float64
	OEmbedEndpoint string
}

// NewDefault wires the HTTP fetcher, the generic strategy and the YouTube
// strategy behind a router.
func NewDefault(opts Options, cache domain.MetadataCache, logger *slog.Logger) *Extractor {
	fetcher := NewHTTPFetcher(logger,
		WithTimeout(opts.FetchTimeout),
		WithUserAgent(opts.UserAgent),
		WithRatePerHost(opts.RatePerHost),
	)

	router := NewRouter(urldetector.New(), NewGenericStrategy(fetcher, logger), logger)
	router.Handle(urldetector.ProviderYouTube, NewYouTubeStrategy(fetcher, opts.OEmbedEndpoint, logger))

	return New(router, cache, logger)
}

// ExtractContext returns normalized metadata for rawURL. The only error it
// returns is the cancellation of ctx.
func (e *Extractor) ExtractContext(ctx context.Context, rawURL string) (domain.Metadata, error) {
	if e.cache != nil {
		if meta, ok := e.cache.Get(rawURL); ok {
			e.logger.Debug("Metadata cache hit", "url", rawURL)
			return meta, nil
		}
	}

	ch := e.group.DoChan(rawURL, func() (interface{}, error) {
		return e.extract(ctx, rawURL)
	})

	select {
	case <-ctx.Done():
		return domain.Metadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// The shared call was cancelled by another caller
			if ctx.Err() != nil {
				return domain.Metadata{}, ctx.Err()
			}
			result, err := e.extract(ctx, rawURL)
			if err != nil {
				return domain.Metadata{}, err
			}
			return result.meta, nil
		}
		return res.Val.(routeResult).meta, nil
	}
}

// Extract is the total form of ExtractContext: if ctx is cancelled the
// network-free fallback for rawURL is returned instead.
func (e *Extractor) Extract(ctx context.Context, rawURL string) domain.Metadata {
	meta, err := e.ExtractContext(ctx, rawURL)
	if err == nil {
		return meta
	}

	fallback := e.router.Fallback(rawURL)
	if fallback.IsZero() {
		return FallbackMetadata(rawURL)
	}
	return Normalize(fallback, rawURL)
}

func (e *Extractor) extract(ctx context.Context, rawURL string) (routeResult, error) {
	meta, degraded, err := e.router.Route(ctx, rawURL)
	if err != nil {
		return routeResult{}, err
	}

	meta = Normalize(meta, rawURL)

	if !degraded && e.cache != nil {
		e.cache.Set(rawURL, meta)
	}

	e.logger.Debug("Extracted metadata",
		"url", rawURL,
		"degraded", degraded,
		"title", meta.Title,
	)

	return routeResult{meta: meta, degraded: degraded}, nil
}
