package github

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// Config holds the settings for a GitHub source.
type Config struct {
	// Token is a personal access token or OAuth access token.
	Token string

	// Repos lists "owner/name" repositories. Empty means every
	// accessible repository.
	Repos []string

	// IncludeArchived and IncludeForks widen repository discovery.
	IncludeArchived bool
	IncludeForks    bool

	// BaseURL overrides the API root, for GitHub Enterprise.
	BaseURL string

	Timeout time.Duration
}

// Validate reports missing or malformed settings.
func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: github token is required", domain.ErrInvalidInput)
	}
	for _, r := range c.Repos {
		if _, _, err := SplitRepo(r); err != nil {
			return err
		}
	}
	return nil
}

// ParseRepos parses a comma-separated repository list.
func ParseRepos(s string) []string {
	parts := strings.Split(s, ",")
	repos := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			repos = append(repos, part)
		}
	}
	return repos
}

// SplitRepo splits "owner/name".
func SplitRepo(full string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: repository %q is not owner/name", domain.ErrInvalidInput, full)
	}
	return owner, name, nil
}
