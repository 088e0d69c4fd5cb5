package fetch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/postroc/pkg/cache"
	"github.com/matzehuels/postroc/pkg/env"
	"github.com/matzehuels/postroc/pkg/observability"
)

// DefaultTTL is how long a successful response stays cached.
const DefaultTTL = 5 * time.Minute

const cacheKeyType = "fetch"

// CachedFetcher serves repeated requests for the same environment and
// endpoint from a [cache.Cache]. Only 2xx responses are stored.
type CachedFetcher struct {
	next    Fetcher
	cache   cache.Cache
	ttl     time.Duration
	refresh bool
}

// CacheOption configures a [CachedFetcher].
type CacheOption func(*CachedFetcher)

// WithTTL overrides [DefaultTTL].
func WithTTL(ttl time.Duration) CacheOption {
	return func(f *CachedFetcher) { f.ttl = ttl }
}

// WithRefresh skips cache reads but still stores fresh responses.
func WithRefresh(refresh bool) CacheOption {
	return func(f *CachedFetcher) { f.refresh = refresh }
}

// NewCachedFetcher decorates next with c.
func NewCachedFetcher(next Fetcher, c cache.Cache, opts ...CacheOption) *CachedFetcher {
	f := &CachedFetcher{next: next, cache: c, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns a cached response when one exists, otherwise delegates.
// Cache backend failures are treated as misses.
func (f *CachedFetcher) Fetch(ctx context.Context, endpoint string, e *env.Environment) (*Response, error) {
	key := CacheKey(endpoint, e)
	hooks := observability.Cache()

	if !f.refresh {
		if data, hit, err := f.cache.Get(ctx, key); err == nil && hit {
			var r Response
			if json.Unmarshal(data, &r) == nil {
				hooks.OnCacheHit(ctx, cacheKeyType)
				return &r, nil
			}
		}
		hooks.OnCacheMiss(ctx, cacheKeyType)
	}

	resp, err := f.next.Fetch(ctx, endpoint, e)
	if err != nil || !resp.OK() {
		return resp, err
	}
	if data, err := json.Marshal(resp); err == nil {
		if f.cache.Set(ctx, key, data, f.ttl) == nil {
			hooks.OnCacheSet(ctx, cacheKeyType, len(data))
		}
	}
	return resp, nil
}

// CacheKey identifies a request by environment name, base URL and endpoint.
func CacheKey(endpoint string, e *env.Environment) string {
	var name, base string
	if e != nil {
		name, base = e.Name, e.BaseURL
	}
	return cache.Key(cacheKeyType, name, base, endpoint)
}

var _ Fetcher = (*CachedFetcher)(nil)
