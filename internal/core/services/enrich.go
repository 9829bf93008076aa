package services

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Enrichment outcomes reported to metrics.
const (
	outcomeOK       = "ok"
	outcomeSentinel = "sentinel"
)

// Enricher attaches analyzer output to fetched records.
// Image attachments fill "image_text", PDF attachments fill "pdf_text".
// When a record carries several attachments of one class the last one
// processed wins. A failed analysis writes the class sentinel instead of
// failing the record.
type Enricher struct {
	images  driven.ImageAnalyzer
	docs    driven.DocumentAnalyzer
	metrics driven.Metrics
	workers int
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithWorkers enriches up to n records concurrently.
func WithWorkers(n int) EnricherOption {
	return func(e *Enricher) { e.workers = n }
}

// WithEnrichmentMetrics sets the metrics sink.
func WithEnrichmentMetrics(m driven.Metrics) EnricherOption {
	return func(e *Enricher) { e.metrics = metricsOrNop(m) }
}

// NewEnricher creates an enricher. Either analyzer may be nil, in which
// case attachments of that class get the sentinel.
func NewEnricher(images driven.ImageAnalyzer, docs driven.DocumentAnalyzer, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		images:  images,
		docs:    docs,
		metrics: nopMetrics{},
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich writes enrichment fields onto fr.Record and returns it.
// Records without attachments are returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, fr driven.FetchedRecord) domain.Record {
	rec := fr.Record
	if rec == nil {
		rec = domain.Record{}
	}
	for _, att := range fr.Attachments {
		switch att.Class() {
		case domain.MediaImage:
			rec[domain.FieldImageText] = e.analyze(ctx, rec.ID(), att, domain.SentinelNoImageText)
		case domain.MediaDocument:
			rec[domain.FieldPDFText] = e.analyze(ctx, rec.ID(), att, domain.SentinelNoDocumentData)
		}
	}
	return rec
}

// EnrichAll enriches every record, in order. With more than one worker
// records are processed on an ants pool.
func (e *Enricher) EnrichAll(ctx context.Context, recs []driven.FetchedRecord) []domain.Record {
	out := make([]domain.Record, len(recs))
	if e.workers <= 1 || len(recs) < 2 {
		for i := range recs {
			out[i] = e.Enrich(ctx, recs[i])
		}
		return out
	}

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		logger.Warn("enrichment pool unavailable, running sequentially: %v", err)
		for i := range recs {
			out[i] = e.Enrich(ctx, recs[i])
		}
		return out
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range recs {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			out[i] = e.Enrich(ctx, recs[i])
		}); err != nil {
			wg.Done()
			out[i] = e.Enrich(ctx, recs[i])
		}
	}
	wg.Wait()
	return out
}

func (e *Enricher) analyze(ctx context.Context, id string, att domain.Attachment, sentinel string) string {
	class := att.Class()
	log := logger.WithFields(map[string]any{
		"id":         id,
		"attachment": att.Name,
		"class":      class.String(),
	})

	url, err := att.Resolve()
	if err != nil {
		log.Warnf("cannot resolve attachment: %v", err)
		e.metrics.Enrichment(class.String(), outcomeSentinel)
		return sentinel
	}

	var text string
	switch class {
	case domain.MediaImage:
		if e.images == nil {
			err = domain.ErrEnrichmentFailed
			break
		}
		text, err = e.images.AnalyzeImage(ctx, url)
	case domain.MediaDocument:
		if e.docs == nil {
			err = domain.ErrEnrichmentFailed
			break
		}
		text, err = e.docs.AnalyzeDocument(ctx, url)
	}

	if err != nil {
		log.Errorf("analysis failed: %v", err)
		e.metrics.Enrichment(class.String(), outcomeSentinel)
		return sentinel
	}
	if text == "" {
		log.Debug("analyzer returned no text")
		e.metrics.Enrichment(class.String(), outcomeSentinel)
		return sentinel
	}
	e.metrics.Enrichment(class.String(), outcomeOK)
	return text
}
