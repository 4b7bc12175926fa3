package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mcpconform/mcpconform/pkg/config"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/output/hooks"
	"github.com/mcpconform/mcpconform/pkg/output/writers"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// buildDispatcher assembles the event pipeline for one run: a writer per
// requested format plus the hooks the flags enabled. The returned func
// flushes and tears everything down; call it exactly once, after the run.
func buildDispatcher(cfg *config.Config) (*dispatcher.Dispatcher, func(), error) {
	disp := dispatcher.New(dispatcher.Config{})

	var files []*os.File
	var closers []func()
	fail := func(err error) (*dispatcher.Dispatcher, func(), error) {
		for _, f := range files {
			f.Close()
		}
		for _, c := range closers {
			c()
		}
		return nil, nil, err
	}

	for _, format := range cfg.Formats {
		format = strings.ToLower(format)
		if format == "console" {
			if !cfg.Quiet {
				// Verbose runs interleave log lines with the output, which
				// the redrawing display cannot share a terminal with.
				disp.RegisterHook(&consoleHook{live: ui.StderrIsTerminal() && !cfg.Verbose})
			}
			continue
		}

		if cfg.OutputDir == "" {
			return fail(fmt.Errorf("format %q needs -o to name a report directory", format))
		}
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fail(err)
		}

		f, err := os.Create(filepath.Join(cfg.OutputDir, "conformance."+formatExtension(format)))
		if err != nil {
			return fail(err)
		}
		files = append(files, f)

		w, err := writerFor(format, f)
		if err != nil {
			return fail(err)
		}
		disp.RegisterWriter(w)
	}

	if cfg.Verbose {
		disp.RegisterHook(hooks.NewLoggerHook(hooks.LoggerOptions{Verbose: true}))
	}

	if cfg.MetricsAddr != "" {
		port, err := metricsPort(cfg.MetricsAddr)
		if err != nil {
			return fail(err)
		}
		ph, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Port: port})
		if err != nil {
			return fail(fmt.Errorf("metrics: %w", err))
		}
		disp.RegisterHook(ph)
		closers = append(closers, func() { ph.Close() })
	}

	if cfg.OTLPEndpoint != "" {
		oh, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: true,
		})
		if err != nil {
			return fail(fmt.Errorf("otel: %w", err))
		}
		disp.RegisterHook(oh)
		closers = append(closers, func() { oh.Close() })
	}

	cleanup := func() {
		disp.Close()
		for _, f := range files {
			f.Close()
		}
		for _, c := range closers {
			c()
		}
	}
	return disp, cleanup, nil
}

// writerFor maps a format name to its writer over w. The format has been
// validated by config already; an unknown name here is a programming error.
func writerFor(format string, w *os.File) (dispatcher.Writer, error) {
	switch format {
	case "json":
		return writers.NewJSONWriter(w, writers.JSONOptions{Pretty: true}), nil
	case "jsonl":
		return writers.NewJSONLWriter(w, writers.JSONLOptions{}), nil
	case "junit":
		return writers.NewJUnitWriter(w, writers.JUnitOptions{}), nil
	case "markdown":
		return writers.NewMarkdownWriter(w, writers.MarkdownConfig{}), nil
	case "html":
		return writers.NewHTMLWriter(w, writers.HTMLConfig{}), nil
	case "pdf":
		return writers.NewPDFWriter(w, writers.PDFConfig{}), nil
	default:
		return nil, fmt.Errorf("no writer for format %q", format)
	}
}

// formatExtension returns the file extension for a report format.
func formatExtension(format string) string {
	switch format {
	case "markdown":
		return "md"
	case "junit":
		return "xml"
	default:
		return format
	}
}

// metricsPort extracts the port from a listen address like ":9090" or
// "localhost:9090".
func metricsPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// A bare number is also accepted.
		portStr = addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("bad metrics address %q: want :port or host:port", addr)
	}
	return port, nil
}

// consoleHook narrates a run on the terminal. With live set it drives a
// redrawing progress display between the start and summary events;
// otherwise it streams one line per verdict as results arrive.
type consoleHook struct {
	live bool

	mu       sync.Mutex
	progress *ui.LiveProgress
}

func (h *consoleHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		if h.live && h.progress == nil {
			h.progress = ui.NewRunProgress("Running conformance checks", e.TotalChecks)
			h.progress.Start()
		}
	case *events.ResultEvent:
		if h.progress == nil {
			ui.PrintLiveResult(string(e.Result.Outcome), e.Check.Name, e.Check.Category, string(e.Check.Level))
			return nil
		}
		h.progress.Increment()
		switch e.Result.Outcome {
		case events.OutcomePassed:
			h.progress.AddMetric("passed")
		case events.OutcomeSkipped:
			h.progress.AddMetric("skipped")
		default:
			h.progress.AddMetric("failed")
		}
		h.progress.SetStatus(e.Check.Name)
	case *events.SummaryEvent:
		if h.progress != nil {
			h.progress.Stop()
			h.progress = nil
		}
	}
	return nil
}

func (h *consoleHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeStart, events.EventTypeResult, events.EventTypeSummary}
}
