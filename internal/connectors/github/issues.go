package github

import (
	"context"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

var (
	// markdownImage matches ![alt](url) and captures the URL.
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)`)

	// markdownLink matches [text](url) links that end in .pdf.
	markdownLink = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+\.pdf)\)`)
)

// FetchIssues lists a repository's issues inside window and converts them
// to tracker records. Pull requests are skipped.
func FetchIssues(
	ctx context.Context, client *Client, repo repoRef, window domain.FetchWindow,
) ([]driven.FetchedRecord, error) {
	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "created",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}
	if !window.Full && !window.Since.IsZero() {
		opts.Since = window.Since
		opts.Sort = "updated"
	}

	issues, err := client.ListIssues(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, fmt.Errorf("list issues %s: %w", repo, err)
	}

	out := make([]driven.FetchedRecord, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		rec, atts := issueRecord(repo, issue)
		out = append(out, driven.FetchedRecord{Record: rec, Attachments: atts})
	}
	return out, nil
}

// issueRecord builds a tracker record. The id is "owner/name#number",
// which is stable across fetches and unique across repositories.
func issueRecord(repo repoRef, issue *gh.Issue) (domain.Record, []domain.Attachment) {
	body := issue.GetBody()
	atts := bodyAttachments(body)

	attList := make([]any, 0, len(atts))
	for _, a := range atts {
		attList = append(attList, map[string]any{
			"filename": a.Name,
			"mimeType": a.MediaType,
			"content":  a.Locator,
		})
	}

	labels := make([]any, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	key := fmt.Sprintf("%s#%d", repo, issue.GetNumber())
	rec := domain.Record{
		domain.FieldID: key,
		"key":          key,
		"self":         issue.GetHTMLURL(),
		domain.FieldFields: map[string]any{
			domain.FieldSummary:     issue.GetTitle(),
			domain.FieldDescription: body,
			"status":                issue.GetState(),
			"reporter":              issue.GetUser().GetLogin(),
			"labels":                labels,
			"created":               formatTime(issue.GetCreatedAt().Time),
			"updated":               formatTime(issue.GetUpdatedAt().Time),
			"attachment":            attList,
		},
	}
	return rec, atts
}

// bodyAttachments extracts linked images and PDFs from a markdown body.
// A URL is listed once even when linked several times.
func bodyAttachments(body string) []domain.Attachment {
	var out []domain.Attachment
	seen := make(map[string]bool)

	add := func(link, fallback string) {
		if seen[link] {
			return
		}
		seen[link] = true
		out = append(out, domain.Attachment{
			Name:      path.Base(link),
			MediaType: mediaTypeFor(link, fallback),
			Locator:   link,
		})
	}

	for _, m := range markdownImage.FindAllStringSubmatch(body, -1) {
		add(m[1], "image/*")
	}
	for _, m := range markdownLink.FindAllStringSubmatch(body, -1) {
		add(m[1], "application/pdf")
	}
	return out
}

// mediaTypeFor guesses from the URL extension. Uploaded assets often have
// none, so the link syntax decides the fallback.
func mediaTypeFor(link, fallback string) string {
	ext := path.Ext(strings.SplitN(link, "?", 2)[0])
	if ext == "" {
		return fallback
	}
	mt := mime.TypeByExtension(strings.ToLower(ext))
	if mt == "" {
		return fallback
	}
	mt, _, _ = strings.Cut(mt, ";")
	return mt
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
