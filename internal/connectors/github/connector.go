package github

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/kbsync/internal/connectors/restapi"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from GitHub repositories.
type Connector struct {
	config Config
	client *Client
	mu     sync.Mutex
	closed bool
}

// New creates a GitHub connector authenticating with tokenProvider.
// A nil provider falls back to cfg.Token.
func New(cfg Config, tokenProvider driven.TokenProvider) *Connector {
	if tokenProvider == nil {
		tokenProvider = StaticToken(cfg.Token)
	}
	return &Connector{
		config: cfg,
		client: NewClient(tokenProvider, cfg.BaseURL, cfg.Timeout),
	}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "github"
}

// Kind returns the tracker kind.
func (c *Connector) Kind() domain.SourceKind {
	return domain.KindTracker
}

// Capabilities returns the connector's capabilities.
func (c *Connector) Capabilities() driven.ConnectorCapabilities {
	return driven.ConnectorCapabilities{
		SupportsIncremental:  true,
		SupportsValidation:   true,
		SupportsAttachments:  true,
		SupportsRateLimiting: true,
		SupportsPagination:   true,
	}
}

// Validate checks if the GitHub connector is properly configured.
func (c *Connector) Validate(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range c.config.Repos {
		if _, _, err := SplitRepo(r); err != nil {
			return err
		}
	}

	if err := c.client.ValidateCredentials(ctx); err != nil {
		if restapi.IsUnauthorized(err) || errors.Is(err, domain.ErrAuthInvalid) {
			return domain.ErrAuthInvalid
		}
		return fmt.Errorf("validate github: %w", err)
	}
	return nil
}

// Fetch returns the issues of every repository inside window.
// A repository that fails is logged and skipped. The fetch fails only when
// repository discovery fails or every repository failed.
func (c *Connector) Fetch(ctx context.Context, window domain.FetchWindow) ([]driven.FetchedRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	repos, err := resolveRepos(ctx, c.client, c.config)
	if err != nil {
		return nil, fmt.Errorf("resolve repos: %w", err)
	}

	var (
		out  []driven.FetchedRecord
		errs []error
	)
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := FetchIssues(ctx, c.client, repo, window)
		if err != nil {
			logger.Warn("github: %s skipped: %v", repo, err)
			errs = append(errs, err)
			continue
		}
		out = append(out, records...)
	}

	if len(repos) > 0 && len(errs) == len(repos) {
		return nil, errors.Join(errs...)
	}

	logger.Debug("github: fetched %d issues from %d repositories", len(out), len(repos))
	return out, nil
}

// Close marks the connector closed.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}
