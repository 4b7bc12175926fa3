package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports run telemetry to an OpenTelemetry collector.
// It opens one span per conformance run and records check results as
// span events with attributes.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	// Active span tracking
	mu       sync.Mutex
	rootSpan trace.Span
	rootCtx  context.Context
	closed   bool

	// Run metadata for attributes
	runID     string
	target    string
	startTime time.Time
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "mcpconform").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for establishing connection (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates an OpenTelemetry hook that exports telemetry to the
// configured endpoint. The exporter connects immediately but handles
// connection failures gracefully without blocking the run.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ShutdownGrace
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.DialTimeout
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}

	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Standalone resource; merging with Default can raise schema conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "conformance"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)

	hook := &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("mcpconform/conformance"),
		startTime:      time.Now(),
	}

	return hook, nil
}

// OnEvent processes events and exports telemetry.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		return h.handleStart(ctx, e)
	case *events.ProgressEvent:
		return h.handleProgress(e)
	case *events.ResultEvent:
		return h.handleResult(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	case *events.CompleteEvent:
		return h.handleComplete(e)
	default:
		return nil
	}
}

// handleStart creates the root span for the run.
func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) error {
	h.runID = start.RunID()
	h.target = start.Target
	h.startTime = start.Timestamp()

	spanCtx, span := h.tracer.Start(ctx, "mcpconform.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("run_id", h.runID),
			attribute.String("target", h.target),
			attribute.String("transport", start.Transport),
			attribute.String("revision", start.Revision),
			attribute.Int("total_checks", start.TotalChecks),
			attribute.Int("timeout_sec", start.Config.Timeout),
			attribute.Bool("strict", start.Config.Strict),
			attribute.StringSlice("categories", start.Categories),
		),
	)

	h.rootSpan = span
	h.rootCtx = spanCtx

	span.AddEvent("run_started", trace.WithAttributes(
		attribute.String("target", h.target),
		attribute.Int("total_checks", start.TotalChecks),
	))

	return nil
}

// handleProgress adds span events for progress updates.
func (h *OTelHook) handleProgress(progress *events.ProgressEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("progress_update", trace.WithAttributes(
		attribute.String("category", progress.Progress.Category),
		attribute.Int("current", progress.Progress.Current),
		attribute.Int("total", progress.Progress.Total),
		attribute.Float64("percentage", progress.Progress.Percentage),
		attribute.Int("passed", progress.Stats.Passed),
		attribute.Int("failed", progress.Stats.Failed),
		attribute.Int("errors", progress.Stats.Errors),
	))

	return nil
}

// handleResult records check results as span events with detailed attributes.
func (h *OTelHook) handleResult(result *events.ResultEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	eventName := "check_result"
	if result.Result.Outcome == events.OutcomeFailed {
		eventName = "check_failed"
	}

	h.rootSpan.AddEvent(eventName, trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("check", result.Check.Name),
		attribute.String("category", result.Check.Category),
		attribute.String("level", string(result.Check.Level)),
		attribute.String("outcome", string(result.Result.Outcome)),
		attribute.Float64("duration_ms", result.Result.DurationMs),
	))

	if result.Result.Outcome == events.OutcomeFailed && result.Check.Level == events.LevelMust {
		h.rootSpan.SetStatus(codes.Error, "MUST requirement failed")
	}

	return nil
}

// handleSummary adds summary attributes to the root span.
func (h *OTelHook) handleSummary(summary *events.SummaryEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.SetAttributes(
		attribute.String("target.endpoint", summary.Target.Endpoint),
		attribute.String("target.transport", summary.Target.Transport),
		attribute.String("target.revision", summary.Target.Revision),
		attribute.Int("totals.checks", summary.Totals.Checks),
		attribute.Int("totals.passed", summary.Totals.Passed),
		attribute.Int("totals.failed", summary.Totals.Failed),
		attribute.Int("totals.skipped", summary.Totals.Skipped),
		attribute.Int("totals.timeouts", summary.Totals.Timeouts),
		attribute.Int("totals.errors", summary.Totals.Errors),
		attribute.Float64("compliance.score", summary.Compliance.Score),
		attribute.String("compliance.tier", summary.Compliance.Tier),
		attribute.Float64("timing.duration_sec", summary.Timing.DurationSec),
		attribute.Int("exit_code", summary.ExitCode),
		attribute.String("exit_reason", summary.ExitReason),
	)

	h.rootSpan.AddEvent("run_summary", trace.WithAttributes(
		attribute.Int("checks", summary.Totals.Checks),
		attribute.Int("passed", summary.Totals.Passed),
		attribute.Int("failed", summary.Totals.Failed),
		attribute.Float64("score", summary.Compliance.Score),
		attribute.String("tier", summary.Compliance.Tier),
		attribute.Float64("duration_sec", summary.Timing.DurationSec),
	))

	if summary.Totals.Failed > 0 {
		h.rootSpan.SetStatus(codes.Error, "Run completed with failures")
	} else {
		h.rootSpan.SetStatus(codes.Ok, "Run completed successfully")
	}

	return nil
}

// handleComplete finalizes the run span and flushes telemetry.
func (h *OTelHook) handleComplete(complete *events.CompleteEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("run_completed", trace.WithAttributes(
		attribute.Bool("success", complete.Success),
		attribute.Int("exit_code", complete.ExitCode),
		attribute.String("exit_reason", complete.ExitReason),
	))

	if complete.Success {
		h.rootSpan.SetStatus(codes.Ok, "Completed successfully")
	} else {
		h.rootSpan.SetStatus(codes.Error, complete.ExitReason)
	}

	h.rootSpan.End()
	h.rootSpan = nil

	return nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeProgress,
		events.EventTypeResult,
		events.EventTypeSummary,
		events.EventTypeComplete,
	}
}

// Close shuts down the tracer provider and flushes any pending telemetry.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()

		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}

	return nil
}

// Endpoint returns the OTLP endpoint being used.
// Useful for testing and logging.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
