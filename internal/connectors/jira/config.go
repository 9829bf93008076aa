package jira

import (
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// DefaultPageSize is the maxResults requested per search page.
const DefaultPageSize = 50

// Config holds the settings for a Jira source.
type Config struct {
	// BaseURL is the REST API root, e.g. https://acme.atlassian.net/rest/api/2.
	BaseURL string

	Username string
	Token    string

	// PageSize is the number of issues requested per search page.
	PageSize int

	// Timeout bounds each HTTP request. Zero uses the client default.
	Timeout time.Duration
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: jira base URL is required", domain.ErrInvalidInput)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: jira token is required", domain.ErrInvalidInput)
	}
	return nil
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}
