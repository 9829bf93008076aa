package enrich

import (
	"context"
	"errors"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure FallbackDocuments implements the interface.
var _ driven.DocumentAnalyzer = (*FallbackDocuments)(nil)

// FallbackDocuments tries each analyzer in order and returns the first
// non-empty result.
type FallbackDocuments struct {
	chain []driven.DocumentAnalyzer
}

// NewFallbackDocuments chains analyzers, skipping nil entries.
func NewFallbackDocuments(analyzers ...driven.DocumentAnalyzer) *FallbackDocuments {
	f := &FallbackDocuments{}
	for _, a := range analyzers {
		if a != nil {
			f.chain = append(f.chain, a)
		}
	}
	return f
}

// AnalyzeDocument returns the first non-empty text. When every analyzer
// fails their errors are joined.
func (f *FallbackDocuments) AnalyzeDocument(ctx context.Context, url string) (string, error) {
	var errs []error
	for i, a := range f.chain {
		text, err := a.AnalyzeDocument(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Debug("document analyzer %d failed for %s: %v", i, url, err)
			errs = append(errs, err)
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", errors.Join(errs...)
}
