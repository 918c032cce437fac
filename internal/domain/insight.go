package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Insight represents one saved URL for one owner, enriched with page metadata
type Insight struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OwnerID string    `json:"owner_id" db:"owner_id"`
	URL     string    `json:"url" db:"url"`

	// Extracted metadata, never null
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	ImageURL    string `json:"image_url" db:"image_url"`

	Tags []string `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewInsight builds a fresh Insight for owner/url with the given metadata
func NewInsight(ownerID, url string, meta Metadata, tags []string) *Insight {
	return &Insight{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		URL:         url,
		Title:       meta.Title,
		Description: meta.Description,
		ImageURL:    meta.ImageURL,
		Tags:        NormalizeTags(tags),
		CreatedAt:   time.Now().UTC(),
	}
}

// Metadata returns the metadata triple stored on the insight
func (i *Insight) Metadata() Metadata {
	return Metadata{
		Title:       i.Title,
		Description: i.Description,
		ImageURL:    i.ImageURL,
	}
}

// NormalizeTags lowercases, trims and deduplicates tag labels.
// The result is sorted and never nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}

	sort.Strings(out)
	return out
}
