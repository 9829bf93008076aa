package confluence

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/kbsync/internal/connectors/restapi"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches pages from the Confluence content API.
type Connector struct {
	config Config
	client *restapi.Client
	mu     sync.Mutex
	closed bool
}

// New creates a Confluence connector.
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
	return "confluence"
}

// Kind returns the wiki kind.
func (c *Connector) Kind() domain.SourceKind {
	return domain.KindWiki
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
	if err := c.client.GetJSON(ctx, "rest/api/user/current", nil, &me); err != nil {
		if restapi.IsUnauthorized(err) {
			return domain.ErrAuthInvalid
		}
		return fmt.Errorf("validate confluence: %w", err)
	}
	return nil
}

type contentPage struct {
	Results []map[string]any `json:"results"`
	Start   int              `json:"start"`
	Limit   int              `json:"limit"`
	Size    int              `json:"size"`
	Links   struct {
		Base string `json:"base"`
		Next string `json:"next"`
	} `json:"_links"`
}

// effectiveLimit is the page size the server actually applied. Confluence
// caps limit below the requested value when bodies are expanded.
func (p contentPage) effectiveLimit(requested int) int {
	if p.Limit > 0 && p.Limit < requested {
		return p.Limit
	}
	return requested
}

// Fetch lists every page in window. Full windows use the content listing,
// incremental ones a CQL search on lastmodified.
func (c *Connector) Fetch(ctx context.Context, window domain.FetchWindow) ([]driven.FetchedRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	limit := c.config.pageSize()
	var out []driven.FetchedRecord
	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, query := request(window, c.config.SpaceKey, start, limit)
		var page contentPage
		if err := c.client.GetJSON(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("confluence %s: %w", path, err)
		}

		base := page.Links.Base
		if base == "" {
			base = c.client.BaseURL()
		}
		for _, p := range page.Results {
			out = append(out, driven.FetchedRecord{
				Record:      domain.Record(p),
				Attachments: attachments(p, base),
			})
		}

		n := len(page.Results)
		start += n
		if n == 0 || (page.Links.Next == "" && n < page.effectiveLimit(limit)) {
			break
		}
	}

	logger.Debug("confluence: fetched %d pages (%s)", len(out), window)
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

// attachments reads children.attachment.results[]. Download links are
// relative to the wiki base.
func attachments(page map[string]any, base string) []domain.Attachment {
	raw, ok := domain.Record(page).Lookup("children", "attachment", "results")
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
		att := domain.Record(m)
		download, _ := lookupString(att, "_links", "download")
		if download == "" {
			continue
		}
		mediaType, _ := lookupString(att, "metadata", "mediaType")
		title, _ := lookupString(att, "title")
		out = append(out, domain.Attachment{
			Name:      title,
			MediaType: mediaType,
			Locator:   download,
			BaseURL:   base,
		})
	}
	return out
}

func lookupString(r domain.Record, path ...string) (string, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
