package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// RecordError is a single record the gateway could not write.
type RecordError struct {
	// Index is the position of the record in the batch.
	Index int

	// ID is the record identifier, empty if the record had none.
	ID string

	Err error
}

// BatchResult summarises one UpsertAll call.
type BatchResult struct {
	Written int
	Failed  int
	Errors  []RecordError

	// Err is set when the batch stopped early because the context ended.
	Err error
}

// Gateway writes batches of records to a store, one upsert per record.
// A record that fails is logged and skipped; the rest of the batch
// continues.
type Gateway struct {
	name    string
	store   driven.RecordStore
	metrics driven.Metrics
}

// NewGateway creates a gateway. name labels the store in logs and metrics.
func NewGateway(name string, store driven.RecordStore, metrics driven.Metrics) *Gateway {
	return &Gateway{name: name, store: store, metrics: metricsOrNop(metrics)}
}

// UpsertAll upserts every record keyed by its identifier.
// Re-running with the same input leaves the store unchanged.
func (g *Gateway) UpsertAll(ctx context.Context, recs []domain.Record) BatchResult {
	var res BatchResult
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		id := rec.ID()
		var err error
		if id == "" {
			err = fmt.Errorf("%w: record has no %q field", domain.ErrInvalidInput, domain.FieldID)
		} else {
			err = g.store.Upsert(ctx, rec)
		}
		if err != nil {
			logger.WithFields(map[string]any{"store": g.name, "id": id, "index": i}).
				Errorf("upsert failed: %v", err)
			res.Failed++
			res.Errors = append(res.Errors, RecordError{Index: i, ID: id, Err: err})
			continue
		}
		res.Written++
	}

	g.metrics.Upserted(g.name, res.Written, res.Failed)
	return res
}
