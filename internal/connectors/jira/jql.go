package jira

import (
	"fmt"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// searchFields are the issue fields requested from the search endpoint.
const searchFields = "summary,description,attachment"

// JQL returns the search query for window. A full window lists every issue
// newest first; an incremental one selects issues updated since the
// window's day.
func JQL(window domain.FetchWindow) string {
	if since := window.SinceDate(); since != "" {
		return fmt.Sprintf("updated >= '%s'", since)
	}
	return "ORDER BY created DESC"
}
