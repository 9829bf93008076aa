package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept in APIError.
	maxErrorBody = 512
)

// Credentials are the basic-auth credentials for a source.
type Credentials struct {
	Username string
	Token    string
}

// Empty reports whether no credentials are configured.
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Token == ""
}

// Client performs authenticated JSON GET requests against one base URL.
type Client struct {
	baseURL     string
	creds       Credentials
	http        *http.Client
	rateLimiter *RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) {
		if l != nil {
			c.rateLimiter = l
		}
	}
}

// NewClient creates a client for baseURL authenticating with creds.
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		creds:       creds,
		http:        &http.Client{Timeout: DefaultTimeout},
		rateLimiter: NewRateLimiter(DefaultRate, DefaultMinBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// URL joins path and query onto the base URL. Absolute paths are kept.
func (c *Client) URL(path string, query url.Values) string {
	u := path
	if parsed, err := url.Parse(path); err != nil || !parsed.IsAbs() {
		u = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// GetJSON issues a GET for path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Do sends an authenticated request and returns the response when it is 2xx.
// Any other status is returned as *APIError or *RateLimitError.
// The caller must close the body of a successful response.
func (c *Client) Do(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !c.creds.Empty() {
		req.SetBasicAuth(c.creds.Username, c.creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}

	if rlErr := c.rateLimiter.CheckRateLimit(resp); rlErr != nil {
		resp.Body.Close()
		return nil, rlErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			URL:        rawURL,
		}
	}
	return resp, nil
}
