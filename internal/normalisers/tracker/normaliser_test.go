package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

func adf(lines ...string) map[string]any {
	blocks := make([]any, 0, len(lines))
	for _, l := range lines {
		blocks = append(blocks, map[string]any{
			"type":    "paragraph",
			"content": []any{map[string]any{"type": "text", "text": l}},
		})
	}
	return map[string]any{"type": "doc", "version": float64(1), "content": blocks}
}

func TestNew(t *testing.T) {
	n := New()
	require.NotNil(t, n)
	assert.Equal(t, "tracker-issue", n.Name())
	assert.Equal(t, []domain.SourceKind{domain.KindTracker}, n.SupportedKinds())
	assert.Equal(t, 90, n.Priority())
}

func TestNormalise_PromotesSummaryAndDescription(t *testing.T) {
	rec := domain.Record{
		"id":  "10001",
		"key": "OPS-1",
		"fields": map[string]any{
			"summary":     "Disk full on build agent",
			"description": adf("Agent 3 is out of space.", "Clean the cache."),
			"attachment":  []any{},
		},
	}

	New().Normalise(rec)

	assert.Equal(t, "Disk full on build agent", rec["summary"])
	assert.Equal(t, "Agent 3 is out of space.\nClean the cache.", rec["description"])

	fields, ok := rec.Map("fields")
	require.True(t, ok)
	assert.Equal(t, "Agent 3 is out of space.\nClean the cache.", fields["description"])
	assert.Equal(t, "Disk full on build agent", fields["summary"], "nested summary is kept")
	assert.Contains(t, fields, "attachment", "unrelated nested fields are kept")
	assert.Equal(t, "OPS-1", rec["key"])
}

func TestNormalise_FlatDescriptionPassesThrough(t *testing.T) {
	rec := domain.Record{"fields": map[string]any{"description": "plain text"}}

	New().Normalise(rec)

	assert.Equal(t, "plain text", rec["description"])
}

func TestNormalise_NullDescription(t *testing.T) {
	rec := domain.Record{"fields": map[string]any{"description": nil}}

	New().Normalise(rec)

	assert.Contains(t, rec, "description")
	assert.Nil(t, rec["description"])
}

func TestNormalise_MissingShapesAreSkipped(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
	}{
		{"no fields", domain.Record{"id": "1", "title": "Page"}},
		{"fields not a mapping", domain.Record{"id": "1", "fields": []any{"x"}}},
		{"empty fields", domain.Record{"id": "1", "fields": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.rec.Clone()
			New().Normalise(tt.rec)
			assert.Equal(t, before, tt.rec)
		})
	}
}

func TestNormalise_Idempotent(t *testing.T) {
	rec := domain.Record{"fields": map[string]any{
		"summary":     "s",
		"description": adf("a", "b"),
	}}

	New().Normalise(rec)
	once := rec.Clone()
	New().Normalise(rec)

	assert.Equal(t, once, rec)
}
