package driven

import "github.com/custodia-labs/kbsync/internal/core/domain"

// Normaliser promotes nested source fields of one record variant to
// flat top-level fields.
type Normaliser interface {
	// Name identifies the normaliser in logs.
	Name() string

	// SupportedKinds returns the source kinds this normaliser handles.
	SupportedKinds() []domain.SourceKind

	// Priority orders normalisers applied to the same record (higher first).
	Priority() int

	// Normalise rewrites rec in place. It must be total: records missing
	// the shapes it looks for are left untouched.
	Normalise(rec domain.Record)
}

// NormaliserRegistry dispatches records to normalisers by source kind.
type NormaliserRegistry interface {
	// Normalise returns a normalised deep copy of rec.
	// Records of unknown kind go through every registered normaliser.
	Normalise(rec domain.Record) domain.Record

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)
}
