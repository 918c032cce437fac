package urldetector

import (
	"regexp"
	"sync"
)

// Provider identifies which extraction strategy a URL is routed to
type Provider string

// Provider constants - the router's dispatch table is keyed by these
const (
	ProviderGeneric Provider = "generic"
	ProviderYouTube Provider = "youtube"
)

// Match is the result of detecting a provider for a URL
type Match struct {
	Provider Provider
	// ResourceID is the provider-specific identifier (e.g. a video ID); empty for generic
	ResourceID string
}

// Detector resolves URLs to providers using ordered regex patterns.
// Each pattern must capture the resource ID in its first group.
type Detector struct {
	patterns []compiledPattern
	mu       sync.RWMutex
}

type compiledPattern struct {
	regex    *regexp.Regexp
	provider Provider
}

// youtubePattern matches the two known YouTube URL shapes:
//   - .../watch?v=<id>
//   - youtu.be/<id>
var youtubePattern = regexp.MustCompile(`(?i)(?:youtube\.com/watch\?v=|youtu\.be/)([^&?#/\s]+)`)

// New creates a detector with the built-in provider patterns
func New() *Detector {
	detector := &Detector{}
	detector.patterns = append(detector.patterns, compiledPattern{
		regex:    youtubePattern,
		provider: ProviderYouTube,
	})
	return detector
}

// Register adds a provider pattern. Patterns registered later are consulted later.
func (d *Detector) Register(provider Provider, pattern *regexp.Regexp) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.patterns = append(d.patterns, compiledPattern{
		regex:    pattern,
		provider: provider,
	})
}

// Detect returns the first provider whose pattern matches the URL,
// or ProviderGeneric when none do
func (d *Detector) Detect(rawURL string) Match {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, pattern := range d.patterns {
		m := pattern.regex.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		id := ""
		if len(m) > 1 {
			id = m[1]
		}
		if id == "" {
			continue
		}
		return Match{Provider: pattern.provider, ResourceID: id}
	}

	return Match{Provider: ProviderGeneric}
}
