package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"quest-insights/internal/domain"
	"quest-insights/internal/pkg/urldetector"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 500
)

// ParseHTML extracts the metadata triple from an HTML document.
//
// Precedence, first non-empty value wins:
//   - title: og:title, then <title>
//   - description: og:description, then meta name=description
//   - image: og:image, then twitter:image
//
// Fields with no match are left empty for the normalizer to fill.
func ParseHTML(body []byte, contentType, pageURL string) (domain.Metadata, error) {
	if !isHTMLContentType(contentType) {
		return domain.Metadata{}, fmt.Errorf("%w: not an HTML page: %s", domain.ErrParse, contentType)
	}

	doc, err := parseDocument(body, contentType)
	if err != nil {
		return domain.Metadata{}, err
	}

	metas := collectMetaTags(doc)

	title := metas.property("og:title")
	if title == "" {
		title = doc.Find("title").First().Text()
	}

	description := metas.property("og:description")
	if description == "" {
		description = metas.name("description")
	}

	image := urldetector.ResolveReference(pageURL, metas.property("og:image"))
	if image == "" {
		image = urldetector.ResolveReference(pageURL, metas.name("twitter:image"))
	}
	if image == "" {
		image = urldetector.ResolveReference(pageURL, metas.property("twitter:image"))
	}

	return domain.Metadata{
		Title:       cleanText(title, maxTitleLength),
		Description: cleanText(description, maxDescriptionLength),
		ImageURL:    image,
	}, nil
}

// parseDocument decodes body to UTF-8 and builds a traversable document
func parseDocument(body []byte, contentType string) (*goquery.Document, error) {
	var reader io.Reader = bytes.NewReader(body)

	// Fall back to the raw bytes if the declared charset is unknown
	if utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
		reader = utf8Reader
	}

	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML: %v", domain.ErrParse, err)
	}

	return goquery.NewDocumentFromNode(root), nil
}

// metaTags holds the first content value seen for each property/name key
type metaTags struct {
	properties map[string]string
	names      map[string]string
}

func (m metaTags) property(key string) string {
	return m.properties[key]
}

func (m metaTags) name(key string) string {
	return m.names[key]
}

// collectMetaTags indexes <meta> tags by lowercased property and name.
// Only non-empty content is recorded, and the first occurrence wins.
func collectMetaTags(doc *goquery.Document) metaTags {
	tags := metaTags{
		properties: make(map[string]string),
		names:      make(map[string]string),
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}

		if property := strings.ToLower(strings.TrimSpace(s.AttrOr("property", ""))); property != "" {
			if _, exists := tags.properties[property]; !exists {
				tags.properties[property] = content
			}
		}

		if name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", ""))); name != "" {
			if _, exists := tags.names[name]; !exists {
				tags.names[name] = content
			}
		}
	})

	return tags
}

// cleanText collapses whitespace and truncates to maxRunes.
// s comes from the parsed DOM, so entities are already decoded and any
// '<' left in it is literal text.
func cleanText(s string, maxRunes int) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.Join(strings.Fields(s), " ")

	if utf8.RuneCountInString(s) > maxRunes {
		runes := []rune(s)
		s = string(runes[:maxRunes-3]) + "..."
	}

	return s
}

// isHTMLContentType accepts HTML and XHTML, and an absent content type
func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
