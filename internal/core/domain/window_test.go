package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFullWindow(t *testing.T) {
	w := FullWindow()
	assert.True(t, w.Full)
	assert.True(t, w.Since.IsZero())
	assert.Empty(t, w.SinceDate())
	assert.Equal(t, "full", w.String())
}

func TestIncrementalWindow_TruncatesToDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"just after midnight", time.Date(2025, 5, 10, 0, 30, 0, 0, time.UTC), "2025-05-09"},
		{"late evening", time.Date(2025, 5, 10, 23, 30, 0, 0, time.UTC), "2025-05-09"},
		{"month boundary", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), "2025-02-28"},
		{"non-UTC input", time.Date(2025, 5, 10, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)), "2025-05-08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := IncrementalWindow(tt.now)
			assert.False(t, w.Full)
			assert.Equal(t, tt.want, w.SinceDate())
			assert.Equal(t, time.UTC, w.Since.Location())
			assert.Zero(t, w.Since.Hour())
			assert.Equal(t, "since "+tt.want, w.String())
		})
	}
}
