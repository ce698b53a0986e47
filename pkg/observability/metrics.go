// Package observability provides Prometheus metrics, health checks, and
// OpenTelemetry tracing for the clinic router.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"handler", "status"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careswarm_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	// Handoff metrics
	handoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_handoffs_total",
			Help: "Total number of handler handoffs",
		},
		[]string{"from", "to"},
	)

	// Tool metrics
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careswarm_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Model metrics
	modelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_model_requests_total",
			Help: "Total number of model completion requests",
		},
		[]string{"provider", "status"},
	)

	modelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_model_tokens_total",
			Help: "Total tokens consumed by model requests",
		},
		[]string{"provider", "kind"},
	)

	// Transport metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careswarm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "careswarm_ws_connections",
			Help: "Number of active websocket chat connections",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			handoffsTotal,
			toolCallsTotal,
			toolCallDuration,
			modelRequestsTotal,
			modelTokensTotal,
			httpRequestsTotal,
			wsConnections,
		)
	})
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records one completed or failed conversation turn.
func RecordTurn(handler, status string, duration time.Duration) {
	turnsTotal.WithLabelValues(handler, status).Inc()
	turnDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordHandoff records one handler transfer.
func RecordHandoff(from, to string) {
	handoffsTotal.WithLabelValues(from, to).Inc()
}

// RecordToolCall records one tool execution.
func RecordToolCall(tool, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordModelRequest records one provider completion call.
func RecordModelRequest(provider, status string, promptTokens, completionTokens int) {
	modelRequestsTotal.WithLabelValues(provider, status).Inc()
	if promptTokens > 0 {
		modelTokensTotal.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		modelTokensTotal.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// WSConnectionOpened increments the websocket connection gauge.
func WSConnectionOpened() { wsConnections.Inc() }

// WSConnectionClosed decrements the websocket connection gauge.
func WSConnectionClosed() { wsConnections.Dec() }
