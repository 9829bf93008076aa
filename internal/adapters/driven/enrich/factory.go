// Package enrich builds the attachment analyzers used by the fetch stage
// and provides the caching and fallback decorators around them.
package enrich

import (
	"fmt"
	"time"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/docintel"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/download"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/pdftext"
	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/vision"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Config selects and configures the analyzers.
type Config struct {
	// Vision is used for images when its endpoint is set.
	Vision vision.Config

	// DocIntel is used for PDFs when its endpoint is set.
	DocIntel docintel.Config

	// LocalPDF adds the local text extractor, as the only document
	// analyzer or as a fallback behind DocIntel.
	LocalPDF bool

	// Upload downloads attachments with source credentials and sends the
	// bytes. Otherwise the services are given the URL.
	Upload bool

	// Credentials maps a source base URL to its credentials.
	Credentials map[string]download.Credentials

	DownloadTimeout  time.Duration
	DownloadMaxBytes int64
	DownloadRate     float64

	// CacheTTL enables result caching when positive.
	CacheTTL time.Duration
}

// Analyzers holds the built analyzers. A nil field means the class is not
// analysed and its records get the failure sentinel.
type Analyzers struct {
	Images    driven.ImageAnalyzer
	Documents driven.DocumentAnalyzer
}

// Build creates the analyzers described by cfg.
func Build(cfg Config) (*Analyzers, error) {
	dl := download.New(
		download.WithTimeout(cfg.DownloadTimeout),
		download.WithMaxBytes(cfg.DownloadMaxBytes),
		download.WithRate(cfg.DownloadRate),
	)
	for base, creds := range cfg.Credentials {
		if err := dl.AddCredentials(base, creds); err != nil {
			return nil, fmt.Errorf("register credentials: %w", err)
		}
	}

	var uploader *download.Downloader
	if cfg.Upload {
		uploader = dl
	}

	out := &Analyzers{}

	if cfg.Vision.Endpoint != "" {
		v, err := vision.New(cfg.Vision, uploader)
		if err != nil {
			return nil, err
		}
		out.Images = v
	}

	var docs []driven.DocumentAnalyzer
	if cfg.DocIntel.Endpoint != "" {
		d, err := docintel.New(cfg.DocIntel, uploader)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if cfg.LocalPDF {
		p, err := pdftext.New(dl)
		if err != nil {
			return nil, err
		}
		docs = append(docs, p)
	}
	switch len(docs) {
	case 0:
	case 1:
		out.Documents = docs[0]
	default:
		out.Documents = NewFallbackDocuments(docs...)
	}

	if cfg.CacheTTL > 0 {
		if out.Images != nil {
			out.Images = NewCachedImages(out.Images, cfg.CacheTTL)
		}
		if out.Documents != nil {
			out.Documents = NewCachedDocuments(out.Documents, cfg.CacheTTL)
		}
	}

	return out, nil
}
