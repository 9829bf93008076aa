package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Sentinel values written when an enrichment was attempted and failed.
const (
	SentinelNoImageText    = "No text extracted."
	SentinelNoDocumentData = "No structured data extracted."
)

// MediaClass groups attachment media types by the analysis they need.
type MediaClass int

const (
	// MediaOther is ignored by enrichment.
	MediaOther MediaClass = iota

	// MediaImage is routed to the image analyzer.
	MediaImage

	// MediaDocument is routed to the document analyzer.
	MediaDocument
)

// String returns the class name used in logs and metrics.
func (c MediaClass) String() string {
	switch c {
	case MediaImage:
		return "image"
	case MediaDocument:
		return "document"
	default:
		return "other"
	}
}

// ClassifyMediaType maps a declared media type to a MediaClass.
func ClassifyMediaType(mediaType string) MediaClass {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaImage
	case strings.HasPrefix(mt, "application/pdf"):
		return MediaDocument
	default:
		return MediaOther
	}
}

// Attachment describes a file owned by a fetched record.
// Only text derived from it is persisted, never the attachment itself.
type Attachment struct {
	// Name is the attachment file name, informational only.
	Name string

	// MediaType is the declared content type (e.g., "image/png").
	MediaType string

	// Locator is an absolute or relative URL to the content.
	Locator string

	// BaseURL resolves relative locators. Empty for sources that
	// always return absolute locators.
	BaseURL string
}

// Class returns the media class of the attachment.
func (a Attachment) Class() MediaClass {
	return ClassifyMediaType(a.MediaType)
}

// Resolve returns the absolute URL of the attachment content.
// A relative locator is joined to BaseURL with exactly one slash between
// them; without a BaseURL it fails with ErrMissingBaseURL.
func (a Attachment) Resolve() (string, error) {
	if a.Locator == "" {
		return "", fmt.Errorf("%w: empty locator", ErrInvalidInput)
	}
	u, err := url.Parse(a.Locator)
	if err == nil && u.IsAbs() {
		return a.Locator, nil
	}
	if a.BaseURL == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingBaseURL, a.Locator)
	}
	return strings.TrimRight(a.BaseURL, "/") + "/" + strings.TrimLeft(a.Locator, "/"), nil
}
