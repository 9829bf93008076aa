// Package domain defines the core entities for kbsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A JSON-like document fetched from a tracker or wiki
//   - SourceKind: The discriminator that selects a Record's typed view
//   - Attachment: A media descriptor owned by a fetched Record
//   - FetchWindow: The full or incremental range a connector fetches
//   - CycleReport: The outcome of one fetch or publish cycle
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
