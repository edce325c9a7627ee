// Memoising decorator so contracts sharing a query hit the backend once
package provider

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/dgraph-io/ristretto"
)

// Cached memoises successful span fetches per (query, from, to). Failed
// fetches are never stored.
type Cached struct {
	inner Provider
	cache *ristretto.Cache
}

// NewCache builds a cache sized for span result sets, with cost counted in spans.
func NewCache() (*ristretto.Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating span cache: %w", err)
	}
	return cache, nil
}

// NewCached wraps inner with cache.
func NewCached(inner Provider, cache *ristretto.Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) FetchSpans(ctx context.Context, query string, from, to time.Time) ([]telemetry.Span, error) {
	key := cacheKey(c.inner.Name(), query, from, to)
	if v, found := c.cache.Get(key); found {
		if spans, ok := v.([]telemetry.Span); ok {
			return slices.Clone(spans), nil
		}
	}

	spans, err := c.inner.FetchSpans(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, slices.Clone(spans), int64(len(spans))+1)
	c.cache.Wait()
	return spans, nil
}

func (c *Cached) FetchMetrics(ctx context.Context, query string, from, to time.Time) ([]telemetry.MetricPoint, error) {
	return c.inner.FetchMetrics(ctx, query, from, to)
}

func cacheKey(provider, query string, from, to time.Time) string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%d", provider, query, from.UnixNano(), to.UnixNano())
}
