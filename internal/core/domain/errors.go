package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown connector, store or analyzer type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a cycle for the same stage is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrStoreUnavailable indicates the destination store cannot be reached.
	// This is the only condition that fails a whole cycle.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Connector Errors.

	// ErrConnectorValidation indicates connector validation failed.
	// The source is misconfigured or credentials are invalid.
	ErrConnectorValidation = errors.New("connector validation failed")

	// ErrConnectorClosed indicates the connector has been closed.
	ErrConnectorClosed = errors.New("connector closed")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthInvalid indicates the source credentials were rejected.
	ErrAuthInvalid = errors.New("authentication invalid")

	// Enrichment Errors.

	// ErrMissingBaseURL indicates a relative attachment locator with no base URL to resolve it.
	ErrMissingBaseURL = errors.New("relative locator without base URL")

	// ErrEnrichmentFailed indicates an analysis service returned no usable result.
	ErrEnrichmentFailed = errors.New("enrichment failed")
)
