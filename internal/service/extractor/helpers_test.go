package extractor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"quest-insights/internal/pkg/urldetector"
)

// createTestLogger creates a logger for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors during tests
	}))
}

// countingFetcher serves a fixed document and records how often it was called
type countingFetcher struct {
	calls       atomic.Int32
	contentType string
	body        string
	err         error

	// release, when set, blocks every fetch until it is closed
	release chan struct{}
	started sync.Once
	startCh chan struct{}
}

func newCountingFetcher(body string) *countingFetcher {
	return &countingFetcher{
		contentType: "text/html; charset=utf-8",
		body:        body,
		startCh:     make(chan struct{}),
	}
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string) (*RawDocument, error) {
	f.calls.Add(1)
	f.started.Do(func() { close(f.startCh) })

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	return &RawDocument{
		URL:         rawURL,
		StatusCode:  200,
		ContentType: f.contentType,
		Body:        []byte(f.body),
	}, nil
}

func (f *countingFetcher) Calls() int {
	return int(f.calls.Load())
}

// newTestExtractor wires a router over fetcher with the video strategy pointed at oembedEndpoint
func newTestExtractor(t *testing.T, fetcher Fetcher, oembedEndpoint string, cache *MemoryCache) *Extractor {
	t.Helper()

	logger := createTestLogger()
	router := NewRouter(urldetector.New(), NewGenericStrategy(fetcher, logger), logger)
	router.Handle(urldetector.ProviderYouTube, NewYouTubeStrategy(fetcher, oembedEndpoint, logger))

	if cache == nil {
		return New(router, nil, logger)
	}
	return New(router, cache, logger)
}
