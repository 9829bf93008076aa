package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure FetchOrchestrator implements the interface.
var _ driving.FetchService = (*FetchOrchestrator)(nil)

// SourceBinding is a configured connector and whether its fetches honour
// the incremental window.
type SourceBinding struct {
	Connector driven.Connector

	// Incremental restricts the connector to the incremental window when
	// the policy picks one. When false the connector always fetches in full.
	Incremental bool
}

// window returns the window this source is fetched with for a cycle base.
func (b SourceBinding) window(base domain.FetchWindow) domain.FetchWindow {
	if base.Full || !b.Incremental || !b.Connector.Capabilities().SupportsIncremental {
		return domain.FullWindow()
	}
	return base
}

// FetchOrchestrator runs the fetch stage: pull every source, enrich
// attachments and upsert the raw records into the source store.
type FetchOrchestrator struct {
	sources  []SourceBinding
	policy   *ChangePolicy
	enricher *Enricher
	gateway  *Gateway
	metrics  driven.Metrics
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	status  driving.SyncStatus
}

// NewFetchOrchestrator creates the fetch stage over the source store.
func NewFetchOrchestrator(
	sources []SourceBinding,
	store driven.RecordStore,
	enricher *Enricher,
	metrics driven.Metrics,
) *FetchOrchestrator {
	if enricher == nil {
		enricher = NewEnricher(nil, nil)
	}
	metrics = metricsOrNop(metrics)
	return &FetchOrchestrator{
		sources:  sources,
		policy:   NewChangePolicy(store),
		enricher: enricher,
		gateway:  NewGateway("source", store, metrics),
		metrics:  metrics,
		now:      time.Now,
		status:   driving.SyncStatus{Stage: domain.StageFetch},
	}
}

// RunFetch executes one fetch cycle.
//
// A connector that fails contributes nothing and the cycle continues with
// the others. A record that cannot be written is skipped. The cycle fails
// only when the source store cannot be reached or the context ends.
func (o *FetchOrchestrator) RunFetch(ctx context.Context, opts driving.FetchOptions) (*domain.CycleReport, error) {
	report := &domain.CycleReport{
		RunID:     uuid.NewString(),
		Stage:     domain.StageFetch,
		StartedAt: o.now(),
	}
	if !o.begin(report.RunID) {
		return nil, domain.ErrSyncInProgress
	}

	var err error
	defer func() {
		report.EndedAt = o.now()
		o.finish(report, err)
	}()

	log := logger.WithFields(map[string]any{"run_id": report.RunID, "stage": domain.StageFetch})
	logger.Section("Fetch")

	base, full, err := o.policy.Window(ctx, opts.ForceFull)
	if err != nil {
		log.Errorf("fetch cycle aborted: %v", err)
		return report, err
	}
	report.FullSync = full
	log.Infof("fetch cycle started (%s)", base)

	var fetched []driven.FetchedRecord
	for _, src := range o.sources {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		recs, sr := o.fetchSource(ctx, src, base)
		report.Sources = append(report.Sources, sr)
		fetched = append(fetched, recs...)
	}
	report.Read = len(fetched)

	enriched := o.enricher.EnrichAll(ctx, fetched)
	res := o.gateway.UpsertAll(ctx, enriched)
	report.Written = res.Written
	report.Failed = res.Failed
	if res.Err != nil {
		err = res.Err
		return report, err
	}

	log.Infof("fetch cycle finished: read=%d written=%d failed=%d", report.Read, report.Written, report.Failed)
	return report, nil
}

func (o *FetchOrchestrator) fetchSource(
	ctx context.Context,
	src SourceBinding,
	base domain.FetchWindow,
) ([]driven.FetchedRecord, domain.SourceReport) {
	conn := src.Connector
	window := src.window(base)
	sr := domain.SourceReport{Name: conn.Type(), Window: window}
	log := logger.WithFields(map[string]any{"source": conn.Type(), "window": window.String()})

	recs, err := conn.Fetch(ctx, window)
	if err != nil {
		log.Errorf("source fetch failed: %v", err)
		sr.Error = err.Error()
		o.metrics.SourceFailed(conn.Type())
		return nil, sr
	}

	kind := string(conn.Kind())
	for i := range recs {
		if recs[i].Record == nil {
			recs[i].Record = domain.Record{}
		}
		recs[i].Record[domain.FieldKind] = kind
	}

	sr.Fetched = len(recs)
	o.metrics.RecordsFetched(conn.Type(), len(recs))
	log.Infof("fetched %d records", len(recs))
	return recs, sr
}

// Validate checks every configured connector that supports validation.
// The map holds one entry per connector type, nil when ready.
func (o *FetchOrchestrator) Validate(ctx context.Context) map[string]error {
	out := make(map[string]error, len(o.sources))
	for _, src := range o.sources {
		conn := src.Connector
		if !conn.Capabilities().SupportsValidation {
			out[conn.Type()] = nil
			continue
		}
		if err := conn.Validate(ctx); err != nil {
			out[conn.Type()] = fmt.Errorf("%w: %w", domain.ErrConnectorValidation, err)
			continue
		}
		out[conn.Type()] = nil
	}
	return out
}

// Status returns the state of the fetch stage.
func (o *FetchOrchestrator) Status(_ context.Context) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := o.status
	return &st, nil
}

func (o *FetchOrchestrator) begin(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	o.status.Running = true
	o.status.RunID = runID
	o.status.RecordsProcessed = 0
	o.status.ErrorCount = 0
	return true
}

func (o *FetchOrchestrator) finish(report *domain.CycleReport, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.status.Running = false
	o.status.RecordsProcessed = report.Written
	o.status.ErrorCount = report.Failed
	for _, sr := range report.Sources {
		if sr.Error != "" {
			o.status.ErrorCount++
		}
	}
	o.status.LastReport = report
	o.metrics.CycleCompleted(string(domain.StageFetch), err == nil, report.Duration())
}
