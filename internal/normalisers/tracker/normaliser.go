// Package tracker normalises issue tracker records.
package tracker

import (
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/normalisers/contenttree"
)

// Ensure IssueNormaliser implements the interface.
var _ driven.Normaliser = (*IssueNormaliser)(nil)

// IssueNormaliser promotes issue summary and description.
type IssueNormaliser struct{}

// New creates a new issue normaliser.
func New() *IssueNormaliser {
	return &IssueNormaliser{}
}

// Name identifies the normaliser in logs.
func (n *IssueNormaliser) Name() string {
	return "tracker-issue"
}

// SupportedKinds returns the source kinds this normaliser handles.
func (n *IssueNormaliser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindTracker}
}

// Priority returns the selection priority.
func (n *IssueNormaliser) Priority() int {
	return 90
}

// Normalise copies fields.summary to the top level and replaces
// fields.description with its flattened text, also promoted to the top
// level. Records without a "fields" mapping are left untouched.
func (n *IssueNormaliser) Normalise(rec domain.Record) {
	issue, ok := rec.Issue()
	if !ok {
		return
	}
	if issue.HasSummary {
		rec[domain.FieldSummary] = issue.Summary
	}
	if issue.HasDesc {
		flat := contenttree.Flatten(issue.Description)
		issue.Fields[domain.FieldDescription] = flat
		rec[domain.FieldDescription] = flat
	}
}
