// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Fetches records from an issue tracker or wiki
//   - RecordStore: Count, read-all and upsert over a document store
//   - NormaliserRegistry: Promotes and flattens record fields
//   - SchedulerStore: Scheduled task state and history
//   - ConfigStore: Application configuration file
//
// # Optional Interfaces
//
// These can be nil - enrichment degrades to sentinel values:
//
//   - ImageAnalyzer: Extracts tags or text from images
//   - DocumentAnalyzer: Extracts structured text from PDFs
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
