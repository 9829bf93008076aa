package confluence

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

const (
	contentPath = "rest/api/content"
	searchPath  = "rest/api/content/search"

	// expand pulls the page body and its attachment listing in one call.
	expand = "version,metadata.labels,body.storage,children.attachment"
)

// CQL returns the search query for an incremental window, or "" for a
// full one.
func CQL(window domain.FetchWindow, spaceKey string) string {
	since := window.SinceDate()
	if since == "" {
		return ""
	}
	q := fmt.Sprintf(`type=page AND lastmodified >= "%s"`, since)
	if spaceKey != "" {
		q = fmt.Sprintf(`space="%s" AND %s`, spaceKey, q)
	}
	return q
}

// request returns the path and query for one listing page.
func request(window domain.FetchWindow, spaceKey string, start, limit int) (string, url.Values) {
	query := url.Values{
		"expand": {expand},
		"start":  {strconv.Itoa(start)},
		"limit":  {strconv.Itoa(limit)},
	}
	if cql := CQL(window, spaceKey); cql != "" {
		query.Set("cql", cql)
		return searchPath, query
	}
	query.Set("type", "page")
	if spaceKey != "" {
		query.Set("spaceKey", spaceKey)
	}
	return contentPath, query
}
