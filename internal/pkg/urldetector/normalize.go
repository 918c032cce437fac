package urldetector

import (
	"net/url"
	"strings"

	"quest-insights/internal/domain"
)

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
// The URL is not rewritten: callers store and cache the exact string.
func ValidateURL(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, domain.ValidationError("url is required")
	}
	if rawURL != strings.TrimSpace(rawURL) {
		return nil, domain.ValidationError("url must not contain surrounding whitespace")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.ValidationError("failed to parse url: %v", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, domain.ValidationError("unsupported url scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, domain.ValidationError("invalid url: no host found")
	}

	return u, nil
}

// Hostname returns the host of rawURL without port, or "" if it cannot be parsed
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ResolveReference resolves a possibly-relative reference against base.
// Returns "" unless the result is an absolute http(s) URL.
func ResolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	if !refURL.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil {
			return ""
		}
		refURL = baseURL.ResolveReference(refURL)
	}

	scheme := strings.ToLower(refURL.Scheme)
	if (scheme != "http" && scheme != "https") || refURL.Host == "" {
		return ""
	}

	return refURL.String()
}
