package jira

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

func issue(id string, attachments ...any) map[string]any {
	list := append([]any{}, attachments...)
	return map[string]any{
		"id":  id,
		"key": "KB-" + id,
		"fields": map[string]any{
			"summary":     "Issue " + id,
			"description": nil,
			"attachment":  list,
		},
	}
}

// fakeJira serves the search endpoint from a fixed issue list, paging by
// startAt/maxResults, and records the queries it saw.
type fakeJira struct {
	issues  []map[string]any
	mu      sync.Mutex
	queries []string
}

func (f *fakeJira) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakeJira) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/2/myself":
			_, _ = w.Write([]byte(`{"accountId":"abc"}`))
		case "/rest/api/2/search":
			q := r.URL.Query()
			f.mu.Lock()
			f.queries = append(f.queries, q.Get("jql"))
			f.mu.Unlock()
			assert.Equal(t, searchFields, q.Get("fields"))

			start, _ := strconv.Atoi(q.Get("startAt"))
			size, _ := strconv.Atoi(q.Get("maxResults"))
			end := start + size
			if end > len(f.issues) {
				end = len(f.issues)
			}
			if start > end {
				start = end
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"startAt":    start,
				"maxResults": size,
				"total":      len(f.issues),
				"issues":     f.issues[start:end],
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestConnector(t *testing.T, fake *fakeJira, pageSize int) *Connector {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return New(Config{
		BaseURL:  server.URL + "/rest/api/2",
		Username: "bob@example.com",
		Token:    "tok",
		PageSize: pageSize,
	}, restapi.WithRateLimiter(restapi.NewRateLimiter(0, 0)))
}

func TestJQL(t *testing.T) {
	assert.Equal(t, "ORDER BY created DESC", JQL(domain.FullWindow()))

	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "updated >= '2024-03-09'", JQL(domain.IncrementalWindow(now)))
}

func TestConnector_Identity(t *testing.T) {
	c := New(Config{BaseURL: "https://example.test", Token: "x"})
	assert.Equal(t, "jira", c.Type())
	assert.Equal(t, domain.KindTracker, c.Kind())
	assert.True(t, c.Capabilities().SupportsIncremental)
	assert.True(t, c.Capabilities().SupportsAttachments)
}

func TestConnector_Fetch_PaginatesAllIssues(t *testing.T) {
	fake := &fakeJira{}
	for i := 1; i <= 5; i++ {
		fake.issues = append(fake.issues, issue(strconv.Itoa(i)))
	}
	c := newTestConnector(t, fake, 2)

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)

	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, strconv.Itoa(i+1), rec.Record.ID())
	}
	queries := fake.seen()
	assert.Len(t, queries, 3)
	assert.Equal(t, "ORDER BY created DESC", queries[0])
}

func TestConnector_Fetch_IncrementalQuery(t *testing.T) {
	fake := &fakeJira{issues: []map[string]any{issue("1")}}
	c := newTestConnector(t, fake, 0)

	window := domain.IncrementalWindow(time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC))
	_, err := c.Fetch(context.Background(), window)
	require.NoError(t, err)

	queries := fake.seen()
	require.Len(t, queries, 1)
	assert.Equal(t, "updated >= '2024-03-09'", queries[0])
}

func TestConnector_Fetch_Attachments(t *testing.T) {
	fake := &fakeJira{issues: []map[string]any{
		issue("7",
			map[string]any{"filename": "shot.png", "mimeType": "image/png", "content": "https://jira.test/att/1"},
			map[string]any{"filename": "manual.pdf", "mimeType": "application/pdf", "content": "https://jira.test/att/2"},
			map[string]any{"filename": "broken", "mimeType": "text/plain"},
			"not a mapping",
		),
	}}
	c := newTestConnector(t, fake, 0)

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)
	require.Len(t, records, 1)

	atts := records[0].Attachments
	require.Len(t, atts, 2)
	assert.Equal(t, domain.Attachment{Name: "shot.png", MediaType: "image/png", Locator: "https://jira.test/att/1"}, atts[0])
	assert.Equal(t, domain.MediaDocument, atts[1].Class())
	assert.Empty(t, atts[1].BaseURL)
}

func TestConnector_Fetch_KeepsRawShape(t *testing.T) {
	fake := &fakeJira{issues: []map[string]any{issue("1")}}
	c := newTestConnector(t, fake, 0)

	records, err := c.Fetch(context.Background(), domain.FullWindow())
	require.NoError(t, err)

	view, ok := records[0].Record.Issue()
	require.True(t, ok)
	assert.Equal(t, "Issue 1", view.Summary)
	assert.True(t, view.HasDesc)
	assert.Nil(t, view.Description)
}

func TestConnector_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Token: "x"})
	records, err := c.Fetch(context.Background(), domain.FullWindow())
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestConnector_Validate(t *testing.T) {
	c := newTestConnector(t, &fakeJira{}, 0)
	assert.NoError(t, c.Validate(context.Background()))
}

func TestConnector_Validate_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Token: "bad"})
	assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrAuthInvalid)
}

func TestConnector_Validate_MissingConfig(t *testing.T) {
	c := New(Config{})
	assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrInvalidInput)
}

func TestConnector_Closed(t *testing.T) {
	c := New(Config{BaseURL: "https://example.test", Token: "x"})
	require.NoError(t, c.Close())

	_, err := c.Fetch(context.Background(), domain.FullWindow())
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
	assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrConnectorClosed)
}
