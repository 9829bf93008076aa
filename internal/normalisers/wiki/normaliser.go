// Package wiki normalises wiki page records.
package wiki

import (
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure PageNormaliser implements the interface.
var _ driven.Normaliser = (*PageNormaliser)(nil)

// PageNormaliser promotes the storage-format body of a page.
type PageNormaliser struct{}

// New creates a new page normaliser.
func New() *PageNormaliser {
	return &PageNormaliser{}
}

// Name identifies the normaliser in logs.
func (n *PageNormaliser) Name() string {
	return "wiki-page"
}

// SupportedKinds returns the source kinds this normaliser handles.
func (n *PageNormaliser) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.KindWiki}
}

// Priority returns the selection priority.
func (n *PageNormaliser) Priority() int {
	return 80
}

// Normalise keeps the top-level title as is and copies body.storage.value
// to the top-level "content" field. The storage value is already a flat
// markup string and is not rewritten.
func (n *PageNormaliser) Normalise(rec domain.Record) {
	page := rec.Page()
	if page.HasTitle {
		rec[domain.FieldTitle] = page.Title
	}
	if page.HasStorage {
		rec[domain.FieldContent] = page.Storage
	}
}
