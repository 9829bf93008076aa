// Package download fetches attachment bytes with per-source credentials.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

const (
	// DefaultTimeout bounds one download.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBytes caps an attachment at 50 MiB.
	DefaultMaxBytes = 50 << 20
)

// Credentials are basic-auth credentials for one source.
type Credentials struct {
	Username string
	Token    string
}

// Content is a downloaded attachment.
type Content struct {
	Data      []byte
	MediaType string
}

// Downloader fetches URLs, authenticating with the credentials of the
// source whose base URL is the longest prefix of the link. Links on a
// known host outside every base path use the first source registered for
// that host.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	limiter  *rate.Limiter

	mu    sync.RWMutex
	creds []credEntry
}

type credEntry struct {
	host  string
	path  string
	creds Credentials
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTimeout sets the per-download timeout.
func WithTimeout(d time.Duration) Option {
	return func(dl *Downloader) {
		if d > 0 {
			dl.client.Timeout = d
		}
	}
}

// WithMaxBytes sets the largest accepted attachment.
func WithMaxBytes(n int64) Option {
	return func(dl *Downloader) {
		if n > 0 {
			dl.maxBytes = n
		}
	}
}

// WithRate throttles downloads to rps per second. Zero disables throttling.
func WithRate(rps float64) Option {
	return func(dl *Downloader) {
		if rps > 0 {
			dl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(dl *Downloader) {
		if c != nil {
			dl.client = c
		}
	}
}

// New creates a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:   &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxBytes,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddCredentials registers creds for links under baseURL. Registering the
// same base twice replaces the earlier credentials.
func (d *Downloader) AddCredentials(baseURL string, creds Credentials) error {
	u, err := parse(baseURL)
	if err != nil {
		return err
	}
	entry := credEntry{host: strings.ToLower(u.Host), path: strings.TrimRight(u.Path, "/"), creds: creds}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.creds {
		if e.host == entry.host && e.path == entry.path {
			d.creds[i] = entry
			return nil
		}
	}
	d.creds = append(d.creds, entry)
	return nil
}

func (d *Downloader) credentialsFor(u *url.URL) (Credentials, bool) {
	host := strings.ToLower(u.Host)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var best, first *credEntry
	for i := range d.creds {
		e := &d.creds[i]
		if e.host != host {
			continue
		}
		if first == nil {
			first = e
		}
		if underPath(u.Path, e.path) && (best == nil || len(e.path) > len(best.path)) {
			best = e
		}
	}
	if best == nil {
		best = first
	}
	if best == nil {
		return Credentials{}, false
	}
	return best.creds, true
}

func underPath(p, prefix string) bool {
	return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Fetch downloads rawURL.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Content, error) {
	u, err := parse(rawURL)
	if err != nil {
		return nil, err
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if creds, ok := d.credentialsFor(u); ok {
		req.SetBasicAuth(creds.Username, creds.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download %s: status %d", domain.ErrEnrichmentFailed, rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrEnrichmentFailed, rawURL, d.maxBytes)
	}

	mediaType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return &Content{Data: data, MediaType: strings.TrimSpace(mediaType)}, nil
}

func parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad URL %q", domain.ErrInvalidInput, rawURL)
	}
	return u, nil
}
