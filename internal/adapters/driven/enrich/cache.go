package enrich

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure the decorators implement the interfaces.
var (
	_ driven.ImageAnalyzer    = (*CachedImages)(nil)
	_ driven.DocumentAnalyzer = (*CachedDocuments)(nil)
)

// DefaultCacheTTL keeps an analysis for a day. Attachments rarely change
// under the same URL and the scheduler refetches hourly.
const DefaultCacheTTL = 24 * time.Hour

// CachedImages memoises successful image analyses by URL.
// Failures are not cached so the next cycle retries them.
type CachedImages struct {
	next  driven.ImageAnalyzer
	cache *cache.Cache
}

// NewCachedImages wraps next with a cache holding results for ttl.
func NewCachedImages(next driven.ImageAnalyzer, ttl time.Duration) *CachedImages {
	return &CachedImages{next: next, cache: newCache(ttl)}
}

// AnalyzeImage returns a cached result or calls the wrapped analyzer.
func (c *CachedImages) AnalyzeImage(ctx context.Context, url string) (string, error) {
	if v, ok := c.cache.Get(url); ok {
		return v.(string), nil
	}
	text, err := c.next.AnalyzeImage(ctx, url)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(url, text)
	return text, nil
}

// Len returns the number of cached results.
func (c *CachedImages) Len() int {
	return c.cache.ItemCount()
}

// CachedDocuments memoises successful document analyses by URL.
type CachedDocuments struct {
	next  driven.DocumentAnalyzer
	cache *cache.Cache
}

// NewCachedDocuments wraps next with a cache holding results for ttl.
func NewCachedDocuments(next driven.DocumentAnalyzer, ttl time.Duration) *CachedDocuments {
	return &CachedDocuments{next: next, cache: newCache(ttl)}
}

// AnalyzeDocument returns a cached result or calls the wrapped analyzer.
func (c *CachedDocuments) AnalyzeDocument(ctx context.Context, url string) (string, error) {
	if v, ok := c.cache.Get(url); ok {
		return v.(string), nil
	}
	text, err := c.next.AnalyzeDocument(ctx, url)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(url, text)
	return text, nil
}

// Len returns the number of cached results.
func (c *CachedDocuments) Len() int {
	return c.cache.ItemCount()
}

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return cache.New(ttl, ttl/2)
}
