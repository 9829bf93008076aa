package driven

import "time"

// Metrics receives pipeline counters. Implementations must be safe for
// concurrent use. Services treat a nil Metrics as a no-op.
type Metrics interface {
	// RecordsFetched counts records returned by a connector.
	RecordsFetched(source string, n int)

	// SourceFailed counts a connector that contributed nothing to a cycle.
	SourceFailed(source string)

	// Enrichment counts one attachment analysis by media class and outcome
	// ("ok", "sentinel").
	Enrichment(class, outcome string)

	// Upserted counts records written to and rejected by a store.
	Upserted(store string, written, failed int)

	// CycleCompleted observes a finished cycle.
	CycleCompleted(stage string, success bool, elapsed time.Duration)
}
