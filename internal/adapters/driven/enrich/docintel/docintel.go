// Package docintel provides a document analyzer backed by the Azure AI
// Document Intelligence layout model.
package docintel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/download"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Analyzer implements the interface.
var _ driven.DocumentAnalyzer = (*Analyzer)(nil)

// Default configuration values.
const (
	DefaultModel        = "prebuilt-layout"
	DefaultAPIVersion   = "2024-11-30"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 5 * time.Minute
)

// Operation statuses reported while polling.
const (
	statusNotStarted = "notStarted"
	statusRunning    = "running"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

// Config holds configuration for the document analyzer.
type Config struct {
	// Endpoint is the resource endpoint (required).
	Endpoint string

	// Key is the subscription key (required).
	Key string

	// Model defaults to prebuilt-layout.
	Model string

	APIVersion string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// PollInterval is the delay between status checks when the service
	// sends no Retry-After.
	PollInterval time.Duration

	// MaxWait bounds one analysis including polling.
	MaxWait time.Duration
}

// Analyzer submits documents to the layout model and polls for the result.
// With a downloader the document is uploaded inline; without one the
// service fetches the URL itself.
type Analyzer struct {
	client       *http.Client
	endpoint     string
	key          string
	model        string
	apiVersion   string
	pollInterval time.Duration
	maxWait      time.Duration
	downloader   *download.Downloader
}

type analyzeRequest struct {
	URLSource    string `json:"urlSource,omitempty"`
	Base64Source string `json:"base64Source,omitempty"`
}

type operationResponse struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		Content string `json:"content"`
	} `json:"analyzeResult"`
	Error *serviceError `json:"error,omitempty"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New creates a document analyzer. downloader may be nil.
func New(cfg Config, downloader *download.Downloader) (*Analyzer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: document intelligence endpoint is required", domain.ErrInvalidInput)
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("%w: document intelligence key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = DefaultMaxWait
	}

	return &Analyzer{
		client:       &http.Client{Timeout: cfg.Timeout},
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		model:        cfg.Model,
		apiVersion:   cfg.APIVersion,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		downloader:   downloader,
	}, nil
}

// AnalyzeDocument returns the document's text content.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, documentURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.maxWait)
	defer cancel()

	opURL, err := a.submit(ctx, documentURL)
	if err != nil {
		return "", err
	}
	return a.poll(ctx, opURL)
}

func (a *Analyzer) submit(ctx context.Context, documentURL string) (string, error) {
	var payload analyzeRequest
	if a.downloader != nil {
		content, err := a.downloader.Fetch(ctx, documentURL)
		if err != nil {
			return "", err
		}
		payload.Base64Source = base64.StdEncoding.EncodeToString(content.Data)
	} else {
		payload.URLSource = documentURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	query := url.Values{"api-version": {a.apiVersion}}
	target := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		a.endpoint, url.PathEscape(a.model), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("%w: no Operation-Location in response", domain.ErrEnrichmentFailed)
	}
	return opURL, nil
}

func (a *Analyzer) poll(ctx context.Context, opURL string) (string, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

		resp, err := a.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("poll operation: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError(resp)
			resp.Body.Close()
			return "", err
		}

		var op operationResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&op)
		wait := retryAfter(resp.Header.Get("Retry-After"), a.pollInterval)
		resp.Body.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("decode operation: %w", decodeErr)
		}

		switch op.Status {
		case statusSucceeded:
			if op.AnalyzeResult == nil {
				return "", nil
			}
			return op.AnalyzeResult.Content, nil
		case statusFailed:
			if op.Error != nil {
				return "", fmt.Errorf("%w: analysis %s: %s", domain.ErrEnrichmentFailed, op.Error.Code, op.Error.Message)
			}
			return "", fmt.Errorf("%w: analysis failed", domain.ErrEnrichmentFailed)
		case statusNotStarted, statusRunning:
		default:
			return "", fmt.Errorf("%w: unexpected status %q", domain.ErrEnrichmentFailed, op.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var wrapped struct {
		Error *serviceError `json:"error"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
		return fmt.Errorf("%w: document intelligence %s: %s",
			domain.ErrEnrichmentFailed, wrapped.Error.Code, wrapped.Error.Message)
	}
	return fmt.Errorf("%w: document intelligence status %d", domain.ErrEnrichmentFailed, resp.StatusCode)
}

// retryAfter honours a Retry-After header in seconds, never polling faster
// than minWait.
func retryAfter(v string, minWait time.Duration) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil {
		if d := time.Duration(secs) * time.Second; d > minWait {
			return d
		}
	}
	return minWait
}
