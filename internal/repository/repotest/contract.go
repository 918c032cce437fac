// Package repotest holds behaviour checks shared by every InsightRepository backend.
package repotest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"quest-insights/internal/domain"
)

// Factory returns an empty repository for one subtest
type Factory func(t *testing.T) domain.InsightRepository

func newInsight(owner, url string, createdAt time.Time, tags ...string) *domain.Insight {
	insight := domain.NewInsight(owner, url, domain.Metadata{
		Title:       "Title for " + url,
		Description: "Content from example.com",
	}, tags)
	insight.CreatedAt = createdAt
	return insight
}

// RunContractTests exercises the InsightRepository contract against newRepo
func RunContractTests(t *testing.T, newRepo Factory) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("create and find by url", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		insight := newInsight("owner-1", "https://example.com/a", base, "Go", "news")
		insight.ImageURL = "https://example.com/a.png"
		if err := repo.Create(ctx, insight); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := repo.GetByOwnerAndURL(ctx, "owner-1", "https://example.com/a")
		if err != nil {
			t.Fatalf("GetByOwnerAndURL() error = %v", err)
		}
		if got.ID != insight.ID {
			t.Errorf("ID = %v, want %v", got.ID, insight.ID)
		}
		if got.Metadata() != insight.Metadata() {
			t.Errorf("Metadata() = %+v, want %+v", got.Metadata(), insight.Metadata())
		}
		if !reflect.DeepEqual(got.Tags, []string{"go", "news"}) {
			t.Errorf("Tags = %v, want [go news]", got.Tags)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByOwnerAndURL(context.Background(), "owner-1", "https://example.com/none")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetByOwnerAndURL() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate owner and url conflicts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if err := repo.Create(ctx, newInsight("owner-1", "https://example.com/a", base)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		err := repo.Create(ctx, newInsight("owner-1", "https://example.com/a", base.Add(time.Minute)))
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("second Create() error = %v, want ErrConflict", err)
		}

		// Another owner may save the same URL
		if err := repo.Create(ctx, newInsight("owner-2", "https://example.com/a", base)); err != nil {
			t.Errorf("Create() for another owner error = %v", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		oldest := newInsight("owner-1", "https://example.com/1", base)
		newest := newInsight("owner-1", "https://example.com/3", base.Add(2*time.Hour))
		middle := newInsight("owner-1", "https://example.com/2", base.Add(time.Hour))
		other := newInsight("owner-2", "https://example.com/9", base.Add(3*time.Hour))

		for _, insight := range []*domain.Insight{oldest, newest, middle, other} {
			if err := repo.Create(ctx, insight); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
		}

		got, err := repo.ListByOwner(ctx, "owner-1")
		if err != nil {
			t.Fatalf("ListByOwner() error = %v", err)
		}

		want := []uuid.UUID{newest.ID, middle.ID, oldest.ID}
		if len(got) != len(want) {
			t.Fatalf("ListByOwner() returned %d insights, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("ListByOwner()[%d] = %s, want %s", i, got[i].ID, id)
			}
		}
	})

	t.Run("list empty", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.ListByOwner(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("ListByOwner() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("ListByOwner() = %v, want empty slice", got)
		}
	})

	t.Run("get by id is owner scoped", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		insight := newInsight("owner-1", "https://example.com/a", base)
		if err := repo.Create(ctx, insight); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if _, err := repo.GetByIDAndOwner(ctx, insight.ID, "owner-1"); err != nil {
			t.Errorf("GetByIDAndOwner() owner error = %v", err)
		}
		if _, err := repo.GetByIDAndOwner(ctx, insight.ID, "owner-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetByIDAndOwner() other owner error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete is owner scoped", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		insight := newInsight("owner-1", "https://example.com/a", base)
		if err := repo.Create(ctx, insight); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := repo.DeleteByIDAndOwner(ctx, insight.ID, "owner-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("DeleteByIDAndOwner() other owner error = %v, want ErrNotFound", err)
		}
		if _, err := repo.GetByIDAndOwner(ctx, insight.ID, "owner-1"); err != nil {
			t.Fatalf("insight removed by another owner: %v", err)
		}

		if err := repo.DeleteByIDAndOwner(ctx, insight.ID, "owner-1"); err != nil {
			t.Fatalf("DeleteByIDAndOwner() error = %v", err)
		}
		if err := repo.DeleteByIDAndOwner(ctx, insight.ID, "owner-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("second DeleteByIDAndOwner() error = %v, want ErrNotFound", err)
		}
	})
}
