// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Prometheus implements the interface.
var _ driven.Metrics = (*Prometheus)(nil)

// Namespace prefixes every metric name.
const Namespace = "kbsync"

// Prometheus records pipeline metrics in a Prometheus registry.
type Prometheus struct {
	recordsFetched *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	enrichments    *prometheus.CounterVec
	upserts        *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
}

// New registers the pipeline metrics with reg. A nil reg uses the default
// registerer, which is what the /metrics endpoint serves.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		recordsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_fetched_total",
			Help:      "Records fetched per source",
		}, []string{"source"}),

		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_failures_total",
			Help:      "Fetches that contributed nothing because the source failed",
		}, []string{"source"}),

		enrichments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "enrichments_total",
			Help:      "Attachment analyses by media class and outcome",
		}, []string{"class", "outcome"}),

		upserts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upserts_total",
			Help:      "Record upserts per store and result",
		}, []string{"store", "result"}),

		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cycles_total",
			Help:      "Completed cycles per stage",
		}, []string{"stage", "success"}),

		// Fetch cycles with remote analysis can take minutes.
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Cycle duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
	}
}

// RecordsFetched adds n to the records fetched from source.
func (p *Prometheus) RecordsFetched(source string, n int) {
	p.recordsFetched.WithLabelValues(source).Add(float64(n))
}

// SourceFailed counts a source whose fetch failed.
func (p *Prometheus) SourceFailed(source string) {
	p.sourceFailures.WithLabelValues(source).Inc()
}

// Enrichment counts one attachment outcome for its media class.
func (p *Prometheus) Enrichment(class, outcome string) {
	p.enrichments.WithLabelValues(class, outcome).Inc()
}

// Upserted records written and failed upserts against store.
func (p *Prometheus) Upserted(store string, written, failed int) {
	p.upserts.WithLabelValues(store, "written").Add(float64(written))
	p.upserts.WithLabelValues(store, "failed").Add(float64(failed))
}

// CycleCompleted records a finished stage run and its duration.
func (p *Prometheus) CycleCompleted(stage string, success bool, elapsed time.Duration) {
	p.cycles.WithLabelValues(stage, strconv.FormatBool(success)).Inc()
	p.cycleDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
