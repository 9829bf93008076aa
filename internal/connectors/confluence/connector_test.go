package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/connectors/restapi"
	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func page(id string, attachments ...any) map[string]any {
	return map[string]any{
		"id":    id,
		"type":  "page",
		"title": "Page " + id,
		"body": map[string]any{
			"storage": map[string]any{"value": "<p>body " + id + "</p>", "representation": "storage"},
		},
		"children": map[string]any{
			"attachment": map[string]any{"results": append([]any{}, attachments...)},
		},
	}
}

func attachment(title, mediaType, download string) map[string]any {
	return map[string]any{
		"title":    title,
		"metadata": map[string]any{"mediaType": mediaType},
		"_links":   map[string]any{"download": download},
	}
}

type fakeWiki struct {
	pages    []map[string]any
	base     string
	maxLimit int
	nextLink bool
	mu       sync.Mutex
	requests []*http.Request
}

func (f *fakeWiki) seen() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

func (f *fakeWiki) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()
	switch r.URL.Path {
	case "/wiki/rest/api/user/current":
		_, _ = w.Write([]byte(`{"type":"known"}`))
	case "/wiki/rest/api/content", "/wiki/rest/api/content/search":
		q := r.URL.Query()
		start, _ := strconv.Atoi(q.Get("start"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if f.maxLimit > 0 && limit > f.maxLimit {
			limit = f.maxLimit
		}
		end := start + limit
		if end > len(f.pages) {
			end = len(f.pages)
		}
		if start > end {
			start = end
		}
		body := map[string]any{
			"results": f.pages[start:end],
			"start":   start,
			"limit":   limit,
			"size":    end - start,
		}
		links := map[string]any{}
		if f.base != "" {
			links["base"] = f.base
		}
		if f.nextLink && end < len(f.pages) {
			links["next"] = r.URL.Path + "?start=" + strconv.Itoa(end)
		}
		if len(links) > 0 {
			body["_links"] = links
		}
		_ = json.NewEncoder(w).Encode(body)
	default:
		http.NotFound(w, r)
	}
}

func newTestConnector(t *testing.T, fake *fakeWiki, cfg Config) (*Connector, string) {
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	cfg.BaseURL = server.URL + "/wiki"
	cfg.Token = "tok"
	return New(cfg, restapi.WithRateLimiter(restapi.NewRateLimiter(0, 0))), cfg.BaseURL
}

func TestCQL(t *testing.T) {
	assert.Empty(t, CQL(domain.FullWindow(), ""))

	window := domain.IncrementalWindow(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, `type=page AND lastmodified >= "2024-03-09"`, CQL(window, ""))
	assert.Equal(t, `space="DOC" AND type=page AND lastmodified >= "2024-03-09"`, CQL(window, "DOC"))
}

func TestConnector_Identity(t *testing.T) {
	c := New(Config{BaseURL: "https://example.test/wiki", Token: "x"})
	assert.Equal(t, "confluence", c.Type())
	assert.Equal(t, domain.KindWiki, c.Kind())
}

func TestConnector_Fetch_FullListsContent(t *testing.T) {
	fake := &fakeWiki{}
	for i := 1; i <= 5; i++ {
		fake.pages = append(fake.pages, page(strconv.Itoa(i)))
	}
	c, _ := newTestConnector(t, fake, Config{PageSize: 2})

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "5", records[4].Record.ID())

	seen := fake.seen()
	require.Len(t, seen, 3)
	q := seen[0].URL.Query()
	assert.Equal(t, "/wiki/rest/api/content", seen[0].URL.Path)
	assert.Equal(t, "page", q.Get("type"))
	assert.Equal(t, expand, q.Get("expand"))
	assert.Empty(t, q.Get("cql"))
}

func TestConnector_Fetch_ServerCappedLimit(t *testing.T) {
	tests := []struct {
		name     string
		nextLink bool
	}{
		{name: "next link", nextLink: true},
		{name: "echoed limit only", nextLink: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeWiki{maxLimit: 10, nextLink: tt.nextLink}
			for i := 1; i <= 30; i++ {
				fake.pages = append(fake.pages, page(strconv.Itoa(i)))
			}
			c, _ := newTestConnector(t, fake, Config{PageSize: 25})

			records, err := c.Fetch(context.Background(), domain.FullWindow())
			require.NoError(t, err)
			require.Len(t, records, 30)
			assert.Equal(t, "30", records[29].Record.ID())

			seen := fake.seen()
			require.GreaterOrEqual(t, len(seen), 3)
			assert.Equal(t, "25", seen[0].URL.Query().Get("limit"))
			assert.Equal(t, "10", seen[1].URL.Query().Get("start"))
			assert.Equal(t, "20", seen[2].URL.Query().Get("start"))
		})
	}
}

func TestConnector_Fetch_IncrementalSearches(t *testing.T) {
	fake := &fakeWiki{pages: []map[string]any{page("1")}}
	c, _ := newTestConnector(t, fake, Config{SpaceKey: "DOC"})

	window := domain.IncrementalWindow(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	records, err := c.Fetch(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, records, 1)

	seen := fake.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "/wiki/rest/api/content/search", seen[0].URL.Path)
	assert.Equal(t, `space="DOC" AND type=page AND lastmodified >= "2024-03-09"`, seen[0].URL.Query().Get("cql"))
}

func TestConnector_Fetch_AttachmentsResolveAgainstBase(t *testing.T) {
	fake := &fakeWiki{pages: []map[string]any{
		page("9",
			attachment("diagram.png", "image/png", "/download/attachments/9/diagram.png?version=1"),
			attachment("guide.pdf", "application/pdf", "/download/attachments/9/guide.pdf"),
			map[string]any{"title": "no link"},
		),
	}}
	c, base := newTestConnector(t, fake, Config{})

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)

	atts := records[0].Attachments
	require.Len(t, atts, 2)
	assert.Equal(t, "image/png", atts[0].MediaType)
	assert.Equal(t, base, atts[0].BaseURL)

	resolved, err := atts[0].Resolve()
	require.NoError(t, err)
	assert.Equal(t, base+"/download/attachments/9/diagram.png?version=1", resolved)
}

func TestConnector_Fetch_PrefersResponseBase(t *testing.T) {
	fake := &fakeWiki{
		pages: []map[string]any{page("1", attachment("a.png", "image/png", "/download/a.png"))},
		base:  "https://acme.atlassian.net/wiki",
	}
	c, _ := newTestConnector(t, fake, Config{})

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)
	assert.Equal(t, "https://acme.atlassian.net/wiki", records[0].Attachments[0].BaseURL)
}

func TestConnector_Fetch_WikiView(t *testing.T) {
	fake := &fakeWiki{pages: []map[string]any{page("3")}}
	c, _ := newTestConnector(t, fake, Config{})

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)

	view := records[0].Record.Page()
	assert.Equal(t, "Page 3", view.Title)
	assert.Equal(t, "<p>body 3</p>", view.Storage)
}

func TestConnector_Fetch_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Token: "x"})
	records, err := c.Fetch(context.Background(), domain.FullWindow())
	assert.Error(t, err)
	assert.Nil(t, records)
}

func TestConnector_Validate(t *testing.T) {
	c, _ := newTestConnector(t, &fakeWiki{}, Config{})
	assert.NoError(t, c.Validate(context.Background()))

	assert.ErrorIs(t, New(Config{}).Validate(context.Background()), domain.ErrInvalidInput)
}

func TestConnector_Closed(t *testing.T) {
	c := New(Config{BaseURL: "https://example.test", Token: "x"})
	require.NoError(t, c.Close())

	_, err := c.Fetch(context.Background(), domain.FullWindow())
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
}
