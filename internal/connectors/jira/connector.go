package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/custodia-labs/kbsync/internal/connectors/restapi"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from the Jira search API.
type Connector struct {
	config Config
	client *restapi.Client
	mu     sync.Mutex
	closed bool
}

// New creates a Jira connector.
func New(cfg Config, opts ...restapi.Option) *Connector {
	if cfg.Timeout > 0 {
		opts = append([]restapi.Option{restapi.WithTimeout(cfg.Timeout)}, opts...)
	}
	return &Connector{
		config: cfg,
		client: restapi.NewClient(cfg.BaseURL, restapi.Credentials{
			Username: cfg.Username,
			Token:    cfg.Token,
		}, opts...),
	}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "jira"
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

// Validate checks the credentials against the current-user endpoint.
func (c *Connector) Validate(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	var me map[string]any
	if err := c.client.GetJSON(ctx, "myself", nil, &me); err != nil {
		if restapi.IsUnauthorized(err) {
			return domain.ErrAuthInvalid
		}
		return fmt.Errorf("validate jira: %w", err)
	}
	return nil
}

type searchPage struct {
	StartAt    int              `json:"startAt"`
	MaxResults int              `json:"maxResults"`
	Total      int              `json:"total"`
	Issues     []map[string]any `json:"issues"`
}

// Fetch walks every search page for window.
func (c *Connector) Fetch(ctx context.Context, window domain.FetchWindow) ([]driven.FetchedRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	jql := JQL(window)
	logger.Debug("jira: searching %q", jql)

	var out []driven.FetchedRecord
	startAt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query := url.Values{
			"jql":        {jql},
			"fields":     {searchFields},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(c.config.pageSize())},
		}
		var page searchPage
		if err := c.client.GetJSON(ctx, "search", query, &page); err != nil {
			return nil, fmt.Errorf("jira search: %w", err)
		}

		for _, issue := range page.Issues {
			out = append(out, toFetched(issue))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	logger.Debug("jira: fetched %d issues", len(out))
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

func toFetched(issue map[string]any) driven.FetchedRecord {
	return driven.FetchedRecord{
		Record:      domain.Record(issue),
		Attachments: attachments(issue),
	}
}

// attachments reads fields.attachment[]. Jira content links are absolute.
func attachments(issue map[string]any) []domain.Attachment {
	raw, ok := domain.Record(issue).Lookup(domain.FieldFields, "attachment")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]domain.Attachment, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		if content == "" {
			continue
		}
		mediaType, _ := m["mimeType"].(string)
		name, _ := m["filename"].(string)
		out = append(out, domain.Attachment{
			Name:      name,
			MediaType: mediaType,
			Locator:   content,
		})
	}
	return out
}
