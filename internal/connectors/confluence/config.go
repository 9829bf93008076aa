package confluence

import (
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// DefaultPageSize is the number of pages requested per listing call.
const DefaultPageSize = 25

// Config holds the settings for a Confluence source.
type Config struct {
	// BaseURL is the wiki root, e.g. https://acme.atlassian.net/wiki.
	// Relative attachment download links resolve against it.
	BaseURL string

	Username string
	Token    string

	// SpaceKey restricts the fetch to one space when set.
	SpaceKey string

	PageSize int
	Timeout  time.Duration
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: confluence base URL is required", domain.ErrInvalidInput)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: confluence token is required", domain.ErrInvalidInput)
	}
	return nil
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}
