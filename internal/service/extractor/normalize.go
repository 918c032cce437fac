package extractor

import (
	"strings"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

// Defaults for input with no usable host
const (
	untitled      = "Untitled"
	noDescription = "No description available"
)

// Normalize fills missing fields with deterministic defaults derived from rawURL.
// It is pure and total: the result never has an empty title or description.
func Normalize(meta domain.Metadata, rawURL string) domain.Metadata {
	host := urldetector.Hostname(rawURL)
	if host == "" {
		host = strings.TrimSpace(rawURL)
	}

	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = host
		if host == "" {
			meta.Title = untitled
		}
	}
	if strings.TrimSpace(meta.Description) == "" {
		meta.Description = "Content from " + host
		if host == "" {
			meta.Description = noDescription
		}
	}
	if strings.TrimSpace(meta.ImageURL) == "" {
		meta.ImageURL = ""
	}

	return meta
}

// FallbackMetadata is the triple used when nothing could be extracted
func FallbackMetadata(rawURL string) domain.Metadata {
	return Normalize(domain.Metadata{}, rawURL)
}
