package hooks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes conformance run metrics for Prometheus scraping.
// It starts an HTTP server that serves metrics at the configured path.
// Metrics include counters for checks/failures/errors, gauges for the
// weighted score and run duration, and a check-duration histogram.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions

	// Counters
	checksTotal   *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec

	// Gauges
	complianceScore    *prometheus.GaugeVec
	runDurationSeconds *prometheus.GaugeVec

	// Histograms
	checkDurationSeconds *prometheus.HistogramVec

	// target label for the active run, set by the start event.
	target    string
	startTime time.Time
	mu        sync.Mutex
	closed    bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Port for the metrics server (default: 9090).
	Port int

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration
}

// NewPrometheusHook creates a Prometheus hook that exposes metrics at the
// configured endpoint. The metrics server starts immediately and runs
// until Close is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = duration.ShutdownGrace
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = duration.DialTimeout
	}

	// Custom registry so the default one stays clean.
	registry := prometheus.NewRegistry()

	hook := &PrometheusHook{
		registry:  registry,
		opts:      opts,
		startTime: time.Now(),
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := hook.startServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	return hook, nil
}

// initMetrics creates and registers all Prometheus metrics.
func (h *PrometheusHook) initMetrics() error {
	h.checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpconform_checks_total",
			Help: "Total number of conformance checks executed",
		},
		[]string{"target", "category"},
	)

	h.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpconform_failures_total",
			Help: "Total number of failed conformance checks",
		},
		[]string{"target", "category", "level"},
	)

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpconform_errors_total",
			Help: "Total number of harness errors and timeouts",
		},
		[]string{"target", "type"},
	)

	h.complianceScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcpconform_compliance_score",
			Help: "Weighted compliance score (0-100)",
		},
		[]string{"target"},
	)

	h.runDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mcpconform_run_duration_seconds",
			Help: "Total run duration in seconds",
		},
		[]string{"target"},
	)

	h.checkDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpconform_check_duration_seconds",
			Help:    "Check duration distribution in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"target", "outcome"},
	)

	collectors := []prometheus.Collector{
		h.checksTotal,
		h.failuresTotal,
		h.errorsTotal,
		h.complianceScore,
		h.runDurationSeconds,
		h.checkDurationSeconds,
	}

	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// startServer starts the HTTP server for metrics.
func (h *PrometheusHook) startServer() error {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.opts.Port),
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[prometheus] metrics server error: %v", err)
		}
	}()

	return nil
}

// OnEvent processes events and updates Prometheus metrics.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.target = extractHost(e.Target)
		return nil
	case *events.ResultEvent:
		return h.handleResult(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	default:
		return nil
	}
}

// handleResult processes result events and updates metrics.
func (h *PrometheusHook) handleResult(result *events.ResultEvent) error {
	target := h.target
	if target == "" {
		target = "unknown"
	}
	category := result.Check.Category

	h.checksTotal.WithLabelValues(target, category).Inc()

	switch result.Result.Outcome {
	case events.OutcomeFailed:
		h.failuresTotal.WithLabelValues(target, category, string(result.Check.Level)).Inc()
	case events.OutcomeErrored, events.OutcomeTimedOut:
		h.errorsTotal.WithLabelValues(target, string(result.Result.Outcome)).Inc()
	}

	if result.Result.DurationMs > 0 {
		h.checkDurationSeconds.WithLabelValues(target, string(result.Result.Outcome)).Observe(result.Result.DurationMs / 1000.0)
	}

	return nil
}

// handleSummary processes summary events and updates final metrics.
func (h *PrometheusHook) handleSummary(summary *events.SummaryEvent) error {
	target := extractHost(summary.Target.Endpoint)

	h.complianceScore.WithLabelValues(target).Set(summary.Compliance.Score)
	h.runDurationSeconds.WithLabelValues(target).Set(summary.Timing.DurationSec)

	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeResult,
		events.EventTypeSummary,
	}
}

// Close shuts down the metrics server and releases resources.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		return h.server.Shutdown(ctx)
	}

	return nil
}

// MetricsAddr returns the address where metrics are served.
// Useful for testing and logging.
func (h *PrometheusHook) MetricsAddr() string {
	return fmt.Sprintf("http://localhost:%d%s", h.opts.Port, h.opts.Path)
}

// extractHost extracts the host from a URL or command line for use as a
// metric label. Returns "unknown" if the input is empty.
func extractHost(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}

	start := 0
	if idx := findIndex(rawURL, "://"); idx >= 0 {
		start = idx + 3
	}

	end := len(rawURL)
	for i := start; i < len(rawURL); i++ {
		if rawURL[i] == '/' || rawURL[i] == '?' || rawURL[i] == '#' || rawURL[i] == ' ' {
			end = i
			break
		}
	}

	host := rawURL[start:end]
	if host == "" {
		return "unknown"
	}
	return host
}

// findIndex returns the index of the first occurrence of substr in s,
// or -1 if not found.
func findIndex(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
