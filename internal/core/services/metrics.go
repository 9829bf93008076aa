package services

import (
	"time"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// nopMetrics discards every observation.
type nopMetrics struct{}

func (nopMetrics) RecordsFetched(string, int)                 {}
func (nopMetrics) SourceFailed(string)                        {}
func (nopMetrics) Enrichment(string, string)                  {}
func (nopMetrics) Upserted(string, int, int)                  {}
func (nopMetrics) CycleCompleted(string, bool, time.Duration) {}

func metricsOrNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
