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

// Ensure PublishOrchestrator implements the interface.
var _ driving.PublishService = (*PublishOrchestrator)(nil)

// PublishOrchestrator runs the publish stage: read the whole source store,
// normalise every record and upsert it into the target store.
//
// The stage never filters by time; every run republishes everything.
// Normalisation is idempotent so repeated runs converge on the same target.
type PublishOrchestrator struct {
	source   driven.RecordStore
	target   driven.RecordStore
	registry driven.NormaliserRegistry
	gateway  *Gateway
	metrics  driven.Metrics
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	status  driving.SyncStatus
}

// NewPublishOrchestrator creates the publish stage.
func NewPublishOrchestrator(
	source, target driven.RecordStore,
	registry driven.NormaliserRegistry,
	metrics driven.Metrics,
) *PublishOrchestrator {
	metrics = metricsOrNop(metrics)
	return &PublishOrchestrator{
		source:   source,
		target:   target,
		registry: registry,
		gateway:  NewGateway("target", target, metrics),
		metrics:  metrics,
		now:      time.Now,
		status:   driving.SyncStatus{Stage: domain.StagePublish},
	}
}

// RunPublish executes one publish cycle.
// Failing to read the source store or to reach the target store fails the
// cycle. Individual records that cannot be written are skipped.
func (o *PublishOrchestrator) RunPublish(ctx context.Context) (*domain.CycleReport, error) {
	report := &domain.CycleReport{
		RunID:     uuid.NewString(),
		Stage:     domain.StagePublish,
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

	log := logger.WithFields(map[string]any{"run_id": report.RunID, "stage": domain.StagePublish})
	logger.Section("Publish")

	if _, cerr := o.target.Count(ctx); cerr != nil {
		err = fmt.Errorf("%w: target store: %w", domain.ErrStoreUnavailable, cerr)
		log.Errorf("publish cycle aborted: %v", err)
		return report, err
	}

	recs, qerr := o.source.QueryAll(ctx)
	if qerr != nil {
		err = fmt.Errorf("%w: read source store: %w", domain.ErrStoreUnavailable, qerr)
		log.Errorf("publish cycle aborted: %v", err)
		return report, err
	}
	report.Read = len(recs)
	log.Infof("publish cycle started: %d records", len(recs))

	out := make([]domain.Record, len(recs))
	for i, rec := range recs {
		out[i] = o.registry.Normalise(rec)
	}

	res := o.gateway.UpsertAll(ctx, out)
	report.Written = res.Written
	report.Failed = res.Failed
	if res.Err != nil {
		err = res.Err
		return report, err
	}

	log.Infof("publish cycle finished: written=%d failed=%d", report.Written, report.Failed)
	return report, nil
}

// Status returns the state of the publish stage.
func (o *PublishOrchestrator) Status(_ context.Context) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := o.status
	return &st, nil
}

func (o *PublishOrchestrator) begin(runID string) bool {
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

func (o *PublishOrchestrator) finish(report *domain.CycleReport, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.status.Running = false
	o.status.RecordsProcessed = report.Written
	o.status.ErrorCount = report.Failed
	o.status.LastReport = report
	o.metrics.CycleCompleted(string(domain.StagePublish), err == nil, report.Duration())
}
