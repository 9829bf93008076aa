// Package vision provides an image analyzer backed by the Azure AI Vision
// Image Analysis API.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/enrich/download"
	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Analyzer implements the interface.
var _ driven.ImageAnalyzer = (*Analyzer)(nil)

// Default configuration values.
const (
	DefaultAPIVersion = "2024-02-01"
	DefaultTimeout    = 30 * time.Second

	analyzePath = "/computervision/imageanalysis:analyze"
)

// Config holds configuration for the vision analyzer.
type Config struct {
	// Endpoint is the resource endpoint, e.g. https://acme.cognitiveservices.azure.com (required).
	Endpoint string

	// Key is the subscription key (required).
	Key string

	// APIVersion defaults to 2024-02-01.
	APIVersion string

	// MinConfidence drops tags scored below it.
	MinConfidence float64

	// IncludeText also requests OCR and appends the recognised lines.
	IncludeText bool

	Timeout time.Duration
}

// Analyzer tags images. When a downloader is set the image bytes are
// fetched with source credentials and uploaded; otherwise the service
// fetches the URL itself.
type Analyzer struct {
	client     *http.Client
	endpoint   string
	key        string
	apiVersion string
	minConf    float64
	withText   bool
	downloader *download.Downloader
}

type analyzeResponse struct {
	TagsResult *struct {
		Values []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"values"`
	} `json:"tagsResult"`
	ReadResult *struct {
		Blocks []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a vision analyzer. downloader may be nil.
func New(cfg Config, downloader *download.Downloader) (*Analyzer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: vision endpoint is required", domain.ErrInvalidInput)
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("%w: vision key is required", domain.ErrInvalidInput)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Analyzer{
		client:     &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		key:        cfg.Key,
		apiVersion: cfg.APIVersion,
		minConf:    cfg.MinConfidence,
		withText:   cfg.IncludeText,
		downloader: downloader,
	}, nil
}

// AnalyzeImage returns the image's tag names joined with ", ".
func (a *Analyzer) AnalyzeImage(ctx context.Context, imageURL string) (string, error) {
	req, err := a.newRequest(ctx, imageURL)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result analyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: vision %s: %s", domain.ErrEnrichmentFailed, result.Error.Code, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: vision status %d", domain.ErrEnrichmentFailed, resp.StatusCode)
	}

	return a.render(result), nil
}

func (a *Analyzer) newRequest(ctx context.Context, imageURL string) (*http.Request, error) {
	features := "tags"
	if a.withText {
		features = "tags,read"
	}
	query := url.Values{
		"api-version": {a.apiVersion},
		"features":    {features},
	}
	target := a.endpoint + analyzePath + "?" + query.Encode()

	var (
		body        []byte
		contentType string
	)
	if a.downloader != nil {
		content, err := a.downloader.Fetch(ctx, imageURL)
		if err != nil {
			return nil, err
		}
		body, contentType = content.Data, "application/octet-stream"
	} else {
		var err error
		body, err = json.Marshal(map[string]string{"url": imageURL})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	return req, nil
}

func (a *Analyzer) render(result analyzeResponse) string {
	var tags []string
	if result.TagsResult != nil {
		for _, v := range result.TagsResult.Values {
			if v.Name == "" || v.Confidence < a.minConf {
				continue
			}
			tags = append(tags, v.Name)
		}
	}
	out := strings.Join(tags, ", ")

	if a.withText && result.ReadResult != nil {
		var lines []string
		for _, b := range result.ReadResult.Blocks {
			for _, l := range b.Lines {
				lines = append(lines, l.Text)
			}
		}
		if len(lines) > 0 {
			if out != "" {
				out += "\n"
			}
			out += strings.Join(lines, "\n")
		}
	}
	return out
}
