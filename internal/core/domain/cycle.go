package domain

import "time"

// Stage identifies one of the two independent pipeline stages.
type Stage string

const (
	// StageFetch pulls sources, enriches attachments and writes the source store.
	StageFetch Stage = "fetch"

	// StagePublish reads the source store, normalises and writes the target store.
	StagePublish Stage = "publish"
)

// SourceReport is the per-connector part of a fetch cycle.
type SourceReport struct {
	// Name is the connector type (e.g., "jira", "confluence").
	Name string

	// Window is the fetch window the connector was given.
	Window FetchWindow

	// Fetched is the number of records the connector returned.
	Fetched int

	// Error is the failure message when the connector contributed nothing.
	Error string
}

// CycleReport is the outcome of one run of a stage.
type CycleReport struct {
	// RunID uniquely identifies the run in logs and history.
	RunID string

	Stage Stage

	// FullSync is set when the change policy chose a full fetch.
	FullSync bool

	StartedAt time.Time
	EndedAt   time.Time

	// Sources holds per-connector results for fetch cycles.
	Sources []SourceReport

	// Read is the number of records read or fetched.
	Read int

	// Written is the number of records upserted successfully.
	Written int

	// Failed is the number of records that could not be upserted.
	Failed int
}

// Duration returns how long the cycle ran.
func (r *CycleReport) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
