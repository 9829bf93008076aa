package driving

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// FetchOptions tunes a single fetch cycle.
type FetchOptions struct {
	// ForceFull skips the change policy and fetches everything.
	ForceFull bool
}

// FetchService runs the fetch stage: sources to the source store.
type FetchService interface {
	// RunFetch executes one fetch cycle.
	// Returns domain.ErrSyncInProgress if a fetch is already running.
	RunFetch(ctx context.Context, opts FetchOptions) (*domain.CycleReport, error)

	// Status returns the state of the fetch stage.
	Status(ctx context.Context) (*SyncStatus, error)
}

// PublishService runs the publish stage: source store to target store.
type PublishService interface {
	// RunPublish executes one normalise-and-republish cycle.
	// Returns domain.ErrSyncInProgress if a publish is already running.
	RunPublish(ctx context.Context) (*domain.CycleReport, error)

	// Status returns the state of the publish stage.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus represents the current state of a stage.
type SyncStatus struct {
	// Stage identifies the pipeline stage.
	Stage domain.Stage

	// Running indicates if a cycle is currently in progress.
	Running bool

	// RunID identifies the running or last cycle.
	RunID string

	// RecordsProcessed is the count of records handled so far.
	RecordsProcessed int

	// ErrorCount is the number of errors encountered.
	ErrorCount int

	// LastReport is the report of the last completed cycle, if any.
	LastReport *domain.CycleReport
}
