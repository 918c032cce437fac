package insights

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
	"quest-insights/internal/repository/sqlite"
	"quest-insights/internal/service/extractor"
)

const testPage = `<html><head>
	<meta property="og:title" content="Saved Page">
	<meta property="og:description" content="Worth keeping">
</head></html>`

// createTestLogger creates a logger for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// countingFetcher serves testPage and counts calls
type countingFetcher struct {
	calls  atomic.Int32
	onCall func(ctx context.Context) error
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string) (*extractor.RawDocument, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		if err := f.onCall(ctx); err != nil {
			return nil, err
		}
	}
	return &extractor.RawDocument{
		URL:         rawURL,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(testPage),
	}, nil
}

func newTestExtractor(fetcher extractor.Fetcher) *extractor.Extractor {
	logger := createTestLogger()
	router := extractor.NewRouter(urldetector.New(), extractor.NewGenericStrategy(fetcher, logger), logger)
	router.Handle(urldetector.ProviderYouTube, extractor.NewYouTubeStrategy(fetcher, "", logger))
	return extractor.New(router, nil, logger)
}

func newTestRepository(t *testing.T) domain.InsightRepository {
	t.Helper()

	db, err := sqlite.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.RunMigrations(db, createTestLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlite.NewInsightRepository(db, createTestLogger())
}

func newTestService(t *testing.T) (*Service, *countingFetcher, domain.InsightRepository) {
	t.Helper()
	fetcher := &countingFetcher{}
	repo := newTestRepository(t)
	return NewService(repo, newTestExtractor(fetcher), createTestLogger()), fetcher, repo
}

func TestSaveInsight(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.SaveInsight(context.Background(), "owner-1", "https://example.com/post", []string{" Go ", "go", "Reading"})
	if err != nil {
		t.Fatalf("SaveInsight() error = %v", err)
	}
	if result.AlreadyExists {
		t.Error("AlreadyExists = true for a new URL")
	}

	insight := result.Insight
	if insight.Title != "Saved Page" || insight.Description != "Worth keeping" || insight.ImageURL != "" {
		t.Errorf("metadata = %+v", insight.Metadata())
	}
	if len(insight.Tags) != 2 || insight.Tags[0] != "go" || insight.Tags[1] != "reading" {
		t.Errorf("Tags = %v, want [go reading]", insight.Tags)
	}
}

func TestSaveInsightIdempotent(t *testing.T) {
	svc, fetcher, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.SaveInsight(ctx, "owner-1", "https://example.com/post", nil)
	if err != nil {
		t.Fatalf("first SaveInsight() error = %v", err)
	}

	second, err := svc.SaveInsight(ctx, "owner-1", "https://example.com/post", []string{"later"})
	if err != nil {
		t.Fatalf("second SaveInsight() error = %v", err)
	}

	if !second.AlreadyExists {
		t.Error("second save should report AlreadyExists")
	}
	if second.Insight.ID != first.Insight.ID {
		t.Errorf("second save returned %v, want existing %v", second.Insight.ID, first.Insight.ID)
	}
	if n := fetcher.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}

	list, err := repo.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("stored %d insights, want 1", len(list))
	}
}

func TestSaveInsightConcurrent(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg       sync.WaitGroup
		created  atomic.Int32
		existing atomic.Int32
		ids      sync.Map
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.SaveInsight(ctx, "owner-1", "https://example.com/race", nil)
			if err != nil {
				t.Errorf("SaveInsight() error = %v", err)
				return
			}
			ids.Store(result.Insight.ID, true)
			if result.AlreadyExists {
				existing.Add(1)
			} else {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("created = %d, want 1", created.Load())
	}
	if existing.Load() != workers-1 {
		t.Errorf("already existing = %d, want %d", existing.Load(), workers-1)
	}

	distinct := 0
	ids.Range(func(_, _ any) bool {
		distinct++
		return true
	})
	if distinct != 1 {
		t.Errorf("callers saw %d distinct insights, want 1", distinct)
	}

	list, err := repo.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("stored %d insights, want 1", len(list))
	}
}

func TestSaveInsightValidation(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		url   string
	}{
		{"missing owner", "", "https://example.com"},
		{"blank owner", "   ", "https://example.com"},
		{"empty url", "owner-1", ""},
		{"relative url", "owner-1", "/posts/1"},
		{"unsupported scheme", "owner-1", "ftp://example.com/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fetcher, _ := newTestService(t)

			_, err := svc.SaveInsight(context.Background(), tt.owner, tt.url, nil)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("SaveInsight() error = %v, want ErrValidation", err)
			}
			if n := fetcher.calls.Load(); n != 0 {
				t.Errorf("fetcher called %d times, want 0", n)
			}
		})
	}
}

func TestSaveInsightCancelled(t *testing.T) {
	fetcher := &countingFetcher{}
	repo := newTestRepository(t)
	svc := NewService(repo, newTestExtractor(fetcher), createTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.onCall = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}

	_, err := svc.SaveInsight(ctx, "owner-1", "https://example.com/slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SaveInsight() error = %v, want context.Canceled", err)
	}

	if _, err := repo.GetByOwnerAndURL(context.Background(), "owner-1", "https://example.com/slow"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("record created despite cancellation: %v", err)
	}
}

// stubRepository lets tests script repository responses
type stubRepository struct {
	domain.InsightRepository

	mu        sync.Mutex
	lookups   int
	winner    *domain.Insight
	createErr error
}

func (r *stubRepository) GetByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Insight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	// The first lookup happens before the competing save lands
	if r.lookups == 1 || r.winner == nil {
		return nil, domain.ErrNotFound
	}
	return r.winner, nil
}

func (r *stubRepository) Create(ctx context.Context, insight *domain.Insight) error {
	return r.createErr
}

func TestSaveInsightConflictMapsToAlreadyExists(t *testing.T) {
	winner := domain.NewInsight("owner-1", "https://example.com/a", domain.Metadata{Title: "W", Description: "D"}, nil)
	repo := &stubRepository{
		winner:    winner,
		createErr: domain.ErrConflict,
	}
	svc := NewService(repo, newTestExtractor(&countingFetcher{}), createTestLogger())

	result, err := svc.SaveInsight(context.Background(), "owner-1", "https://example.com/a", nil)
	if err != nil {
		t.Fatalf("SaveInsight() error = %v", err)
	}
	if !result.AlreadyExists {
		t.Error("conflict should be reported as AlreadyExists")
	}
	if result.Insight.ID != winner.ID {
		t.Errorf("Insight = %v, want winner %v", result.Insight.ID, winner.ID)
	}
}

func TestSaveInsightStorageFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	repo := &stubRepository{createErr: diskFull}
	svc := NewService(repo, newTestExtractor(&countingFetcher{}), createTestLogger())

	_, err := svc.SaveInsight(context.Background(), "owner-1", "https://example.com/a", nil)
	if !errors.Is(err, diskFull) {
		t.Errorf("SaveInsight() error = %v, want wrapped storage error", err)
	}
}

func TestDeleteInsightOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.SaveInsight(ctx, "owner-1", "https://example.com/mine", nil)
	if err != nil {
		t.Fatalf("SaveInsight() error = %v", err)
	}
	id := result.Insight.ID

	if err := svc.DeleteInsight(ctx, id, "owner-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteInsight() by other owner error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetInsight(ctx, id, "owner-1"); err != nil {
		t.Fatalf("insight missing after foreign delete: %v", err)
	}

	if err := svc.DeleteInsight(ctx, id, "owner-1"); err != nil {
		t.Fatalf("DeleteInsight() error = %v", err)
	}
	if _, err := svc.GetInsight(ctx, id, "owner-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetInsight() after delete error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteInsight(ctx, uuid.New(), "owner-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteInsight() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestGetInsights(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, url := range []string{"https://example.com/1", "https://example.com/2"} {
		if _, err := svc.SaveInsight(ctx, "owner-1", url, nil); err != nil {
			t.Fatalf("SaveInsight(%s) error = %v", url, err)
		}
	}
	if _, err := svc.SaveInsight(ctx, "owner-2", "https://example.com/3", nil); err != nil {
		t.Fatalf("SaveInsight() error = %v", err)
	}

	list, err := svc.GetInsights(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetInsights() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("GetInsights() returned %d, want 2", len(list))
	}
	if list[0].URL != "https://example.com/2" {
		t.Errorf("first insight = %s, want newest", list[0].URL)
	}

	if _, err := svc.GetInsights(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("GetInsights(\"\") error = %v, want ErrValidation", err)
	}
}

func TestExtractMetadata(t *testing.T) {
	svc, _, _ := newTestService(t)

	meta := svc.ExtractMetadata(context.Background(), "https://youtu.be/abc123")
	if meta.ImageURL != "https://img.youtube.com/vi/abc123/hqdefault.jpg" {
		t.Errorf("ImageURL = %q, want video thumbnail", meta.ImageURL)
	}
	if meta.Title == "" || meta.Description == "" {
		t.Errorf("ExtractMetadata() = %+v, want populated fields", meta)
	}
}
