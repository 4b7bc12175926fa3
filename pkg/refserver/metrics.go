package refserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics collects the server's Prometheus metrics on a private
// registry, so multiple servers (common in tests) never fight over the
// default one.
type serverMetrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	toolCalls *prometheus.CounterVec
	toolTime  *prometheus.HistogramVec
	streams   prometheus.Gauge
}

func newServerMetrics(s *Server) *serverMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &serverMetrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpconform",
			Subsystem: "refserver",
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by method and outcome.",
		}, []string{"method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcpconform",
			Subsystem: "refserver",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"method"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpconform",
			Subsystem: "refserver",
			Name:      "tool_calls_total",
			Help:      "Tool executions, by tool and outcome.",
		}, []string{"tool", "status"}),
		toolTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcpconform",
			Subsystem: "refserver",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"tool"}),
		streams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcpconform",
			Subsystem: "refserver",
			Name:      "push_streams_active",
			Help:      "Currently attached SSE push streams.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mcpconform",
		Subsystem: "refserver",
		Name:      "sessions_active",
		Help:      "Live sessions in the registry.",
	}, func() float64 { return float64(s.sessions.Count()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mcpconform",
		Subsystem: "refserver",
		Name:      "operations_active",
		Help:      "Async operations not yet terminal.",
	}, func() float64 { return float64(s.tracker.ActiveCount()) })

	return m
}

func (m *serverMetrics) observeRequest(method, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, status).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *serverMetrics) observeToolCall(tool, status string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolTime.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
