package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

const (
	// DefaultYouTubeOEmbedEndpoint is YouTube's public oEmbed API
	DefaultYouTubeOEmbedEndpoint = "https://www.youtube.com/oembed"

	youtubeProviderName = "YouTube"
)

// oEmbedResponse holds the fields we read from an oEmbed JSON response
// See: https://oembed.com/#section2.3
type oEmbedResponse struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// YouTubeStrategy extracts metadata for YouTube videos using oEmbed.
// The thumbnail is built from the video ID, so the image never needs a fetch.
type YouTubeStrategy struct {
	fetcher  Fetcher
	endpoint string
	logger   *slog.Logger
}

// NewYouTubeStrategy creates the video strategy. An empty endpoint selects
// DefaultYouTubeOEmbedEndpoint.
func NewYouTubeStrategy(fetcher Fetcher, endpoint string, logger *slog.Logger) *YouTubeStrategy {
	if endpoint == "" {
		endpoint = DefaultYouTubeOEmbedEndpoint
	}
	return &YouTubeStrategy{
		fetcher:  fetcher,
		endpoint: endpoint,
		logger:   logger,
	}
}

// Extract calls the oEmbed endpoint for the video. On any failure it returns
// the deterministic fallback triple along with the error.
func (s *YouTubeStrategy) Extract(ctx context.Context, resourceURL string, match urldetector.Match) (domain.Metadata, error) {
	videoID := match.ResourceID
	fallback := s.Fallback(resourceURL, match)

	oembedURL, err := buildOEmbedURL(s.endpoint, resourceURL)
	if err != nil {
		return fallback, fmt.Errorf("failed to build oEmbed URL: %w", err)
	}

	s.logger.Debug("Making oEmbed API request",
		"provider", youtubeProviderName,
		"oembed_api_url", oembedURL,
		"video_id", videoID,
	)

	doc, err := s.fetcher.Fetch(ctx, oembedURL)
	if err != nil {
		return fallback, fmt.Errorf("failed to fetch oEmbed data from %s: %w", youtubeProviderName, err)
	}

	var data oEmbedResponse
	if err := json.Unmarshal(doc.Body, &data); err != nil {
		return fallback, fmt.Errorf("%w: invalid oEmbed JSON: %v", domain.ErrParse, err)
	}

	meta := domain.Metadata{
		Title:       strings.TrimSpace(data.Title),
		Description: fmt.Sprintf("%s Video ID: %s", youtubeProviderName, videoID),
		ImageURL:    youtubeThumbnailURL(videoID),
	}
	if meta.Title == "" {
		meta.Title = fallback.Title
	}
	if author := strings.TrimSpace(data.AuthorName); author != "" {
		meta.Description = fmt.Sprintf("By %s", author)
	}

	s.logger.Debug("oEmbed extraction successful",
		"provider", youtubeProviderName,
		"video_id", videoID,
		"title", meta.Title,
	)

	return meta, nil
}

// Fallback returns the triple built from the video ID alone
func (s *YouTubeStrategy) Fallback(_ string, match urldetector.Match) domain.Metadata {
	return domain.Metadata{
		Title:       fmt.Sprintf("%s Video: %s", youtubeProviderName, match.ResourceID),
		Description: fmt.Sprintf("%s Video ID: %s", youtubeProviderName, match.ResourceID),
		ImageURL:    youtubeThumbnailURL(match.ResourceID),
	}
}

// youtubeThumbnailURL builds the thumbnail URL for a video ID
func youtubeThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", url.PathEscape(videoID))
}

// buildOEmbedURL constructs the oEmbed API URL with proper parameters
func buildOEmbedURL(endpoint, resourceURL string) (string, error) {
	// Some endpoints have placeholders like {format}
	endpoint = strings.ReplaceAll(endpoint, "{format}", "json")

	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}

	query := baseURL.Query()
	query.Set("url", resourceURL)
	query.Set("format", "json")
	baseURL.RawQuery = query.Encode()

	return baseURL.String(), nil
}
