package domain

import "time"

// DateLayout is the day-granularity layout used by incremental queries.
const DateLayout = "2006-01-02"

// FetchWindow bounds what a connector fetches in one cycle.
type FetchWindow struct {
	// Full requests every item, newest first.
	Full bool

	// Since is the inclusive lower bound on item update time.
	// Always a UTC day boundary. Zero when Full is true.
	Since time.Time
}

// FullWindow returns an unbounded window.
func FullWindow() FetchWindow {
	return FetchWindow{Full: true}
}

// IncrementalWindow returns the window for an incremental cycle run at now:
// items updated on or after the UTC calendar day of now minus 24 hours.
// The bound is truncated to the day, so a run at 00:30 UTC reaches back
// a little over 24 hours and a run at 23:30 UTC almost 48.
func IncrementalWindow(now time.Time) FetchWindow {
	d := now.UTC().Add(-24 * time.Hour)
	return FetchWindow{
		Since: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// SinceDate formats the lower bound as YYYY-MM-DD.
// Returns an empty string for full windows.
func (w FetchWindow) SinceDate() string {
	if w.Full || w.Since.IsZero() {
		return ""
	}
	return w.Since.Format(DateLayout)
}

// String describes the window for logs.
func (w FetchWindow) String() string {
	if w.Full {
		return "full"
	}
	return "since " + w.SinceDate()
}
