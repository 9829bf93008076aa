// Package driving defines interfaces that external actors (CLI, HTTP
// trigger, scheduler) use to run the pipeline. These are the "driving"
// ports in hexagonal architecture terminology - they drive the application.
//
// Implementations of these interfaces live in internal/core/services.
package driving
