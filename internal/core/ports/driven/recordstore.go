package driven

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// RecordStore is a document store keyed by the record "id" field.
// Implementations exist for memory, SQLite and MongoDB.
type RecordStore interface {
	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// QueryAll returns every record in the store.
	QueryAll(ctx context.Context) ([]domain.Record, error)

	// Upsert creates the record if absent and fully replaces it otherwise.
	// Returns domain.ErrInvalidInput if the record has no identifier.
	Upsert(ctx context.Context, rec domain.Record) error

	// Get retrieves a record by identifier.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (domain.Record, error)

	// Close releases the underlying connection.
	Close() error
}
