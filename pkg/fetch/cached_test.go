package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/postroc/pkg/cache"
	"github.com/matzehuels/postroc/pkg/env"
)

// stubFetcher returns a fixed response and counts calls.
type stubFetcher struct {
	resp  *Response
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string, *env.Environment) (*Response, error) {
	s.calls++
	return s.resp, s.err
}

func newFileCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachedFetcherHit(t *testing.T) {
	ctx := context.Background()
	stub := &stubFetcher{resp: &Response{Status: 200, StatusText: "OK", Body: map[string]any{"id": float64(7)}}}
	f := NewCachedFetcher(stub, newFileCache(t))
	e := &env.Environment{Name: "dev", BaseURL: "https://api.example.com"}

	first, err := f.Fetch(ctx, "/users/7", e)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	second, err := f.Fetch(ctx, "/users/7", e)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("underlying fetcher called %d times, want 1", stub.calls)
	}
	if second.Status != first.Status || second.Body.(map[string]any)["id"] != float64(7) {
		t.Errorf("cached response = %+v, want %+v", second, first)
	}

	other := &env.Environment{Name: "prod", BaseURL: "https://api.example.com"}
	if _, err := f.Fetch(ctx, "/users/7", other); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("a different environment should miss, calls = %d", stub.calls)
	}
}

func TestCachedFetcherSkipsFailures(t *testing.T) {
	ctx := context.Background()
	stub := &stubFetcher{resp: &Response{Status: 404}, err: &StatusError{Status: 404}}
	f := NewCachedFetcher(stub, newFileCache(t))

	for range 2 {
		if _, err := f.Fetch(ctx, "https://api.example.com/x", nil); err == nil {
			t.Fatal("Fetch() should pass the error through")
		}
	}
	if stub.calls != 2 {
		t.Errorf("failed responses should not be cached, calls = %d", stub.calls)
	}

	stub = &stubFetcher{err: errors.New("boom")}
	f = NewCachedFetcher(stub, newFileCache(t))
	if resp, err := f.Fetch(ctx, "https://api.example.com/x", nil); err == nil || resp != nil {
		t.Errorf("Fetch() = %v, %v", resp, err)
	}
}

func TestCachedFetcherRefreshAndTTL(t *testing.T) {
	ctx := context.Background()
	stub := &stubFetcher{resp: &Response{Status: 200, Body: "x"}}
	c := newFileCache(t)

	refresh := NewCachedFetcher(stub, c, WithRefresh(true))
	refresh.Fetch(ctx, "https://api.example.com/x", nil)
	refresh.Fetch(ctx, "https://api.example.com/x", nil)
	if stub.calls != 2 {
		t.Errorf("refresh should bypass reads, calls = %d", stub.calls)
	}

	cached := NewCachedFetcher(stub, c)
	cached.Fetch(ctx, "https://api.example.com/x", nil)
	if stub.calls != 2 {
		t.Errorf("refresh should still write, calls = %d", stub.calls)
	}

	short := NewCachedFetcher(stub, c, WithTTL(time.Nanosecond))
	short.Fetch(ctx, "https://api.example.com/y", nil)
	time.Sleep(2 * time.Millisecond)
	short.Fetch(ctx, "https://api.example.com/y", nil)
	if stub.calls != 4 {
		t.Errorf("expired entries should miss, calls = %d", stub.calls)
	}
}

func TestCacheKey(t *testing.T) {
	e := &env.Environment{Name: "dev", BaseURL: "https://a"}
	if CacheKey("/x", e) == CacheKey("/y", e) {
		t.Error("CacheKey should depend on the endpoint")
	}
	if CacheKey("/x", e) == CacheKey("/x", &env.Environment{Name: "dev", BaseURL: "https://b"}) {
		t.Error("CacheKey should depend on the base URL")
	}
	if CacheKey("/x", nil) != CacheKey("/x", &env.Environment{}) {
		t.Error("nil and empty environments should share a key")
	}
}
