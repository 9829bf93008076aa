package driven

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// Connector fetches records from an external content source.
// Each connector type (jira, confluence, github) implements this interface.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Kind returns the source kind stamped on every fetched record.
	Kind() domain.SourceKind

	// Capabilities returns what this connector supports.
	Capabilities() ConnectorCapabilities

	// Validate checks if the connector is properly configured and authenticated.
	// Performs a lightweight API call. Returns nil if ready to fetch.
	Validate(ctx context.Context) error

	// Fetch returns the records inside window, each with the attachments
	// that should be enriched. Connectors without incremental support
	// treat every window as full.
	Fetch(ctx context.Context, window domain.FetchWindow) ([]FetchedRecord, error)

	// Close releases resources.
	Close() error
}

// ConnectorCapabilities describes what a connector supports.
type ConnectorCapabilities struct {
	// SupportsIncremental indicates the connector can restrict a fetch
	// to items updated since a date.
	SupportsIncremental bool

	// SupportsValidation indicates Validate() performs actual validation.
	SupportsValidation bool

	// SupportsAttachments indicates fetched records may carry attachments.
	SupportsAttachments bool

	// SupportsRateLimiting indicates the connector throttles itself.
	SupportsRateLimiting bool

	// SupportsPagination indicates the connector walks paginated listings.
	SupportsPagination bool
}

// FetchedRecord is a raw record and the attachments found on it.
type FetchedRecord struct {
	Record      domain.Record
	Attachments []domain.Attachment
}
