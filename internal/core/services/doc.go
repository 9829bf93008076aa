// Package services implements the driving port interfaces.
// Services contain the pipeline logic and orchestrate calls to driven
// ports (connectors, analyzers, stores).
//
// The fetch stage and the publish stage share no state beyond the source
// store; each runs under its own lock and may be triggered independently.
package services
