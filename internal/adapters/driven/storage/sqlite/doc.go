// Package sqlite provides a SQLite-based implementation of the record and
// scheduler stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file can hold several record collections
// (for example the raw source store and the normalised target store) plus
// the scheduler's task state and history:
//
//   - RecordStore: JSON records keyed by collection and id
//   - SchedulerStore: task state and execution history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.kbsync/data/kbsync.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
