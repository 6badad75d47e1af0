package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide metric vectors. Registered once on the default registry and
// exposed through /metrics.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kf_requests_total",
		Help: "Total API requests",
	}, []string{"endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "kf_request_duration_seconds",
		Help: "Request duration",
	}, []string{"endpoint"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kf_tool_calls_total",
		Help: "Total tool calls",
	}, []string{"tool"})

	ToolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "kf_tool_latency_seconds",
		Help: "Tool call latency",
	}, []string{"tool"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kf_cache_hits_total",
		Help: "Cache hits",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kf_cache_misses_total",
		Help: "Cache misses",
	}, []string{"cache"})

	ImageProviderResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kf_image_provider_results_total",
		Help: "Image lookups resolved, by winning provider",
	}, []string{"provider"})
)

// ObserveRequest records one request outcome with its duration.
func ObserveRequest(endpoint, status string, took time.Duration) {
	RequestsTotal.WithLabelValues(endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

// ObserveTool records one tool invocation with its latency.
func ObserveTool(tool string, took time.Duration) {
	ToolCallsTotal.WithLabelValues(tool).Inc()
	ToolLatency.WithLabelValues(tool).Observe(took.Seconds())
}
