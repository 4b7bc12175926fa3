// Package hooks contains real-time event hooks for the output dispatcher:
// structured log lines, Prometheus metrics, and OpenTelemetry traces.
package hooks

import (
	"context"
	"log/slog"

	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*LoggerHook)(nil)

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// LoggerHook emits one structured log line per event. It is the
// machine-readable counterpart of the console writer: pipe it at a
// JSON handler and every check result becomes a parseable record.
type LoggerHook struct {
	logger  *slog.Logger
	verbose bool
}

// LoggerOptions configures the logger hook.
type LoggerOptions struct {
	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger

	// Verbose also logs progress events, not just results and errors.
	Verbose bool
}

// NewLoggerHook creates a hook that logs events through slog.
func NewLoggerHook(opts LoggerOptions) *LoggerHook {
	return &LoggerHook{
		logger:  orDefault(opts.Logger),
		verbose: opts.Verbose,
	}
}

// OnEvent logs the event at a level matching its severity.
func (h *LoggerHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.StartEvent:
		h.logger.InfoContext(ctx, "run started",
			slog.String("run_id", e.RunID()),
			slog.String("target", e.Target),
			slog.String("transport", e.Transport),
			slog.String("revision", e.Revision),
			slog.Int("total_checks", e.TotalChecks),
		)
	case *events.ResultEvent:
		attrs := []any{
			slog.String("check", e.Check.Name),
			slog.String("category", e.Check.Category),
			slog.String("level", string(e.Check.Level)),
			slog.String("outcome", string(e.Result.Outcome)),
			slog.Float64("duration_ms", e.Result.DurationMs),
		}
		if e.Result.Message != "" {
			attrs = append(attrs, slog.String("message", e.Result.Message))
		}
		switch e.Result.Outcome {
		case events.OutcomePassed, events.OutcomeSkipped:
			h.logger.InfoContext(ctx, "check result", attrs...)
		default:
			h.logger.WarnContext(ctx, "check result", attrs...)
		}
	case *events.ProgressEvent:
		if h.verbose {
			h.logger.DebugContext(ctx, "progress",
				slog.String("category", e.Progress.Category),
				slog.Int("current", e.Progress.Current),
				slog.Int("total", e.Progress.Total),
			)
		}
	case *events.ErrorEvent:
		h.logger.ErrorContext(ctx, "run error",
			slog.String("check", e.Check),
			slog.String("error_type", e.ErrorType),
			slog.String("message", e.Message),
			slog.Bool("fatal", e.Fatal),
		)
	case *events.SummaryEvent:
		h.logger.InfoContext(ctx, "run summary",
			slog.Int("checks", e.Totals.Checks),
			slog.Int("passed", e.Totals.Passed),
			slog.Int("failed", e.Totals.Failed),
			slog.Int("skipped", e.Totals.Skipped),
			slog.Float64("score", e.Compliance.Score),
			slog.String("tier", e.Compliance.Tier),
		)
	case *events.CompleteEvent:
		h.logger.InfoContext(ctx, "run complete",
			slog.Bool("success", e.Success),
			slog.Int("exit_code", e.ExitCode),
			slog.String("exit_reason", e.ExitReason),
		)
	}
	return nil
}

// EventTypes returns nil: the logger accepts every event type.
func (h *LoggerHook) EventTypes() []events.EventType { return nil }
