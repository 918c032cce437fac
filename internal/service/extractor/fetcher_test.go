package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"quest-insights/internal/domain"
)

func TestHTTPFetcherSuccess(t *testing.T) {
	userAgents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(createTestLogger())

	doc, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotUA := <-userAgents; gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if doc.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", doc.StatusCode)
	}
	if !strings.HasPrefix(doc.ContentType, "text/html") {
		t.Errorf("ContentType = %q, want text/html", doc.ContentType)
	}
	if string(doc.Body) != "<html><title>ok</title></html>" {
		t.Errorf("Body = %q", doc.Body)
	}
}

func TestHTTPFetcherUserAgentOption(t *testing.T) {
	tests := []struct {
		name   string
		option string
		want   string
	}{
		{"custom agent", "TestAgent/2.0", "TestAgent/2.0"},
		{"empty keeps default", "", DefaultUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userAgents := make(chan string, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userAgents <- r.Header.Get("User-Agent")
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(createTestLogger(), WithUserAgent(tt.option))
			if _, err := fetcher.Fetch(context.Background(), server.URL); err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}

			if gotUA := <-userAgents; gotUA != tt.want {
				t.Errorf("User-Agent = %q, want %q", gotUA, tt.want)
			}
		})
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	tests := []int{
		http.StatusNotFound,
		http.StatusForbidden,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	}

	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(createTestLogger())
			_, err := fetcher.Fetch(context.Background(), server.URL)

			var fetchErr *domain.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Fetch() error = %v, want *domain.FetchError", err)
			}
			if fetchErr.Kind != domain.FetchErrorStatus {
				t.Errorf("Kind = %v, want %v", fetchErr.Kind, domain.FetchErrorStatus)
			}
			if fetchErr.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, status)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("server called %d times, want 1 (no retries)", n)
			}
		})
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(createTestLogger(), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *domain.FetchError", err)
	}
	if fetchErr.Kind != domain.FetchErrorTimeout {
		t.Errorf("Kind = %v, want %v", fetchErr.Kind, domain.FetchErrorTimeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch() took %v, expected to give up after the timeout", elapsed)
	}
}

func TestHTTPFetcherTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachable := server.URL
	server.Close()

	fetcher := NewHTTPFetcher(createTestLogger())
	_, err := fetcher.Fetch(context.Background(), unreachable)

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *domain.FetchError", err)
	}
	if fetchErr.Kind != domain.FetchErrorTransport {
		t.Errorf("Kind = %v, want %v", fetchErr.Kind, domain.FetchErrorTransport)
	}
}

func TestHTTPFetcherCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	fetcher := NewHTTPFetcher(createTestLogger())
	_, err := fetcher.Fetch(ctx, server.URL)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestHTTPFetcherLimitsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("a", maxBodySize+1024)))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(createTestLogger())
	doc, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(doc.Body) != maxBodySize {
		t.Errorf("len(Body) = %d, want %d", len(doc.Body), maxBodySize)
	}
}

func TestHostLimiterBounded(t *testing.T) {
	limiter := newHostLimiter(1000, 1, 2)

	for _, host := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		if err := limiter.Wait(context.Background(), host); err != nil {
			t.Fatalf("Wait(%s) error = %v", host, err)
		}
	}

	if got := limiter.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestHostLimiterPerHostBucket(t *testing.T) {
	// One token per second: a second fetch of the same host must wait
	limiter := newHostLimiter(1, 1, 4)

	if err := limiter.Wait(context.Background(), "a.example.com"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "a.example.com"); err == nil {
		t.Error("second Wait() on the same host should not fit in 50ms")
	}

	if err := limiter.Wait(context.Background(), "b.example.com"); err != nil {
		t.Errorf("Wait() on another host error = %v", err)
	}
}
