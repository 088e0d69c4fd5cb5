package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusHooks implements every hook interface by recording Prometheus
// metrics. Register one instance for all three categories.
type PrometheusHooks struct {
	nodes         *prometheus.CounterVec
	nodeDuration  prometheus.Histogram
	fieldWarnings *prometheus.CounterVec
	cacheEvents   *prometheus.CounterVec
	cacheBytes    prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
}

// NewPrometheusHooks creates the collectors and registers them with reg.
// It panics if a collector is already registered, like MustRegister.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postroc_nodes_resolved_total",
			Help: "Nodes resolved, labelled by whether any field produced a warning.",
		}, []string{"outcome"}),
		nodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postroc_node_resolve_duration_seconds",
			Help:    "Time to resolve a single node.",
			Buckets: prometheus.DefBuckets,
		}),
		fieldWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postroc_field_warnings_total",
			Help: "Fields that could not be resolved, by field type.",
		}, []string{"kind"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postroc_cache_events_total",
			Help: "Cache lookups and writes.",
		}, []string{"key_type", "event"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postroc_cache_written_bytes_total",
			Help: "Bytes written to the response cache.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postroc_http_requests_total",
			Help: "Outgoing fetch requests by host and status code.",
		}, []string{"host", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postroc_http_request_duration_seconds",
			Help:    "Outgoing fetch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postroc_http_errors_total",
			Help: "Outgoing fetches that failed before a response arrived.",
		}, []string{"host"}),
	}
	reg.MustRegister(
		h.nodes, h.nodeDuration, h.fieldWarnings,
		h.cacheEvents, h.cacheBytes,
		h.httpRequests, h.httpDuration, h.httpErrors,
	)
	return h
}

func (h *PrometheusHooks) OnNodeStart(context.Context, string) {}

func (h *PrometheusHooks) OnNodeComplete(_ context.Context, _ string, warnings int, d time.Duration) {
	outcome := "ok"
	if warnings > 0 {
		outcome = "warnings"
	}
	h.nodes.WithLabelValues(outcome).Inc()
	h.nodeDuration.Observe(d.Seconds())
}

func (h *PrometheusHooks) OnFieldWarning(_ context.Context, _ string, kind string) {
	h.fieldWarnings.WithLabelValues(kind).Inc()
}

func (h *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (h *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (h *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheEvents.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.Add(float64(size))
}

func (h *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (h *PrometheusHooks) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	h.httpRequests.WithLabelValues(host, statusClass(code)).Inc()
	h.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpErrors.WithLabelValues(host).Inc()
}

// statusClass buckets codes as "2xx", "4xx", ... to bound label cardinality.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

var (
	_ ResolveHooks = (*PrometheusHooks)(nil)
	_ CacheHooks   = (*PrometheusHooks)(nil)
	_ HTTPHooks    = (*PrometheusHooks)(nil)
)
