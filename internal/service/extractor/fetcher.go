package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"quest-insights/internal/domain"
)

const (
	// DefaultFetchTimeout bounds a single remote fetch
	DefaultFetchTimeout = 10 * time.Second

	// DefaultUserAgent is the declared, non-browser client identity
	DefaultUserAgent = "Mozilla/5.0 (compatible; QuestBot/1.0; +https://quest.app/bot)"

	// maxBodySize limits how much of a response body is read
	maxBodySize = 1024 * 1024

	// maxTrackedHosts bounds the per-host rate limiters kept in memory
	maxTrackedHosts = 4096
)

// RawDocument is the raw response of a successful fetch
type RawDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher retrieves raw bytes for a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*RawDocument, error)
}

// HTTPFetcher fetches documents over HTTP with a bounded wait
type HTTPFetcher struct {
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
	limiter   *hostLimiter
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the bounded wait for each fetch
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent overrides the declared client identity
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRatePerHost limits requests per remote host. A rate of 0 disables limiting.
func WithRatePerHost(rps float64) FetcherOption {
	return func(f *HTTPFetcher) {
		if rps > 0 {
			f.limiter = newHostLimiter(rps, 2, maxTrackedHosts)
		}
	}
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(logger *slog.Logger, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		logger:    logger,
		userAgent: DefaultUserAgent,
		timeout:   DefaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves rawURL. Non-2xx responses are returned as a *domain.FetchError
// carrying the status code; they are not retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*RawDocument, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.limiter != nil {
		host := ""
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Host
		}
		if err := f.limiter.Wait(fetchCtx, host); err != nil {
			return nil, f.classify(ctx, rawURL, err)
		}
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchErrorTransport, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug("Fetch returned non-success status",
			"url", rawURL,
			"status_code", resp.StatusCode,
		)
		return nil, &domain.FetchError{
			Kind:       domain.FetchErrorStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, f.classify(ctx, rawURL, err)
	}

	f.logger.Debug("Fetched document",
		"url", rawURL,
		"status_code", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return &RawDocument{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classify turns a transport error into a FetchError. Cancellation of the
// caller's context is returned as-is so callers can abort.
func (f *HTTPFetcher) classify(parent context.Context, rawURL string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, parent.Err())
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.FetchError{Kind: domain.FetchErrorTimeout, URL: rawURL, Err: err}
	}

	return &domain.FetchError{Kind: domain.FetchErrorTransport, URL: rawURL, Err: err}
}

// hostLimiter keeps one token bucket per remote host, for the most recently
// fetched hosts only. An evicted host starts again with a full bucket.
type hostLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func newHostLimiter(rps float64, burst, maxHosts int) *hostLimiter {
	if maxHosts <= 0 {
		maxHosts = maxTrackedHosts
	}
	// lru.New only fails for a non-positive size
	limiters, _ := lru.New[string, *rate.Limiter](maxHosts)

	return &hostLimiter{
		limiters: limiters,
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until host may be fetched again or ctx is done
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(host)
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters.Add(host, limiter)
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}

// Len reports how many hosts are tracked
func (l *hostLimiter) Len() int {
	return l.limiters.Len()
}
