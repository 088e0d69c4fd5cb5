package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Resolve hooks
	r := NoopResolveHooks{}
	r.OnNodeStart(ctx, "users")
	r.OnNodeComplete(ctx, "users", 1, time.Second)
	r.OnFieldWarning(ctx, "users", "reference")

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "fetch")
	c.OnCacheMiss(ctx, "fetch")
	c.OnCacheSet(ctx, "fetch", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "api.example.com", "/users")
	h.OnResponse(ctx, "GET", "api.example.com", "/users", 200, time.Second)
	h.OnError(ctx, "GET", "api.example.com", "/users", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Resolve() should return NoopResolveHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customResolve := &testResolveHooks{}
	SetResolveHooks(customResolve)
	if Resolve() != customResolve {
		t.Error("SetResolveHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Reset() should restore NoopResolveHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testResolveHooks{}
	SetResolveHooks(custom)
	SetResolveHooks(nil)

	if Resolve() != custom {
		t.Error("SetResolveHooks(nil) should be ignored")
	}
}

func TestPrometheusHooks(t *testing.T) {
	ctx := context.Background()
	h := NewPrometheusHooks(prometheus.NewRegistry())

	h.OnNodeComplete(ctx, "a", 0, time.Millisecond)
	h.OnNodeComplete(ctx, "b", 2, time.Millisecond)
	h.OnNodeComplete(ctx, "c", 0, time.Millisecond)
	h.OnFieldWarning(ctx, "b", "api-fetch")
	h.OnCacheHit(ctx, "fetch")
	h.OnCacheMiss(ctx, "fetch")
	h.OnCacheSet(ctx, "fetch", 100)
	h.OnCacheSet(ctx, "fetch", 28)
	h.OnResponse(ctx, "GET", "api.example.com", "/users", 200, time.Millisecond)
	h.OnResponse(ctx, "GET", "api.example.com", "/users", 503, time.Millisecond)
	h.OnError(ctx, "GET", "api.example.com", "/users", errors.New("refused"))

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"ok nodes", h.nodes.WithLabelValues("ok"), 2},
		{"nodes with warnings", h.nodes.WithLabelValues("warnings"), 1},
		{"fetch warnings", h.fieldWarnings.WithLabelValues("api-fetch"), 1},
		{"cache hits", h.cacheEvents.WithLabelValues("fetch", "hit"), 1},
		{"cache sets", h.cacheEvents.WithLabelValues("fetch", "set"), 2},
		{"cache bytes", h.cacheBytes, 128},
		{"2xx", h.httpRequests.WithLabelValues("api.example.com", "2xx"), 1},
		{"5xx", h.httpRequests.WithLabelValues("api.example.com", "5xx"), 1},
		{"errors", h.httpErrors.WithLabelValues("api.example.com"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 404: "4xx", 503: "5xx", 0: "other", 999: "other"}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}

// Test implementations
type testResolveHooks struct{ NoopResolveHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
