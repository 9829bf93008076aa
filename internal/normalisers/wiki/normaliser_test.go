package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func TestNew(t *testing.T) {
	n := New()
	require.NotNil(t, n)
	assert.Equal(t, "wiki-page", n.Name())
	assert.Equal(t, []domain.SourceKind{domain.KindWiki}, n.SupportedKinds())
	assert.Equal(t, 80, n.Priority())
}

func TestNormalise_PromotesStorageValue(t *testing.T) {
	rec := domain.Record{
		"id":    "98765",
		"type":  "page",
		"title": "On-call runbook",
		"body": map[string]any{
			"storage": map[string]any{
				"value":          "<p>Page the <strong>primary</strong>.</p>",
				"representation": "storage",
			},
		},
	}

	New().Normalise(rec)

	assert.Equal(t, "On-call runbook", rec["title"])
	assert.Equal(t, "<p>Page the <strong>primary</strong>.</p>", rec["content"], "storage markup is not flattened")

	storage, ok := rec.Lookup("body", "storage")
	require.True(t, ok)
	assert.Equal(t, "storage", storage.(map[string]any)["representation"], "nested body is kept")
}

func TestNormalise_MissingShapesAreSkipped(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
	}{
		{"no body", domain.Record{"id": "1", "title": "T"}},
		{"body without storage", domain.Record{"id": "1", "body": map[string]any{"view": map[string]any{"value": "x"}}}},
		{"storage without value", domain.Record{"id": "1", "body": map[string]any{"storage": map[string]any{}}}},
		{"body not a mapping", domain.Record{"id": "1", "body": "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.rec.Clone()
			New().Normalise(tt.rec)
			assert.Equal(t, before, tt.rec)
			assert.NotContains(t, tt.rec, "content")
		})
	}
}
