// Package pdftext provides a local document analyzer that extracts the
// text layer of a PDF without calling a remote service.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/download"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Analyzer implements the interface.
var _ driven.DocumentAnalyzer = (*Analyzer)(nil)

const (
	// MaxPages limits the number of pages read from one document.
	MaxPages = 200

	// MaxTextSize caps the extracted text at 1 MiB.
	MaxTextSize = 1 << 20
)

// Analyzer downloads a PDF and reads its text page by page.
// Scanned documents without a text layer yield an empty result.
type Analyzer struct {
	downloader *download.Downloader
}

// New creates a local PDF analyzer.
func New(downloader *download.Downloader) (*Analyzer, error) {
	if downloader == nil {
		return nil, errors.New("pdftext: downloader is required")
	}
	return &Analyzer{downloader: downloader}, nil
}

// AnalyzeDocument returns the text of the PDF at documentURL.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, documentURL string) (string, error) {
	content, err := a.downloader.Fetch(ctx, documentURL)
	if err != nil {
		return "", err
	}
	return ExtractText(content.Data)
}

// ExtractText reads the text layer of a PDF. Pages that fail to decode
// are skipped; page texts are separated by a blank line.
func ExtractText(data []byte) (text string, err error) {
	// The parser panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", domain.ErrEnrichmentFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", domain.ErrEnrichmentFailed, err)
	}

	total := reader.NumPage()
	if total > MaxPages {
		total = MaxPages
	}

	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
		if b.Len() >= MaxTextSize {
			break
		}
	}

	out := b.String()
	if len(out) > MaxTextSize {
		out = out[:MaxTextSize]
	}
	return out, nil
}
