package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/config"
	"github.com/mcpconform/mcpconform/pkg/conformance"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/input"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/report"
	"github.com/mcpconform/mcpconform/pkg/transport"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runConformance executes the run command: it resolves the target, opens
// the transport, runs the suite, and renders the requested reports. args
// is everything after the subcommand.
func runConformance(args []string) {
	cfg, err := config.ParseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	ui.SetNoColor(cfg.NoColor)
	ui.SetSilent(cfg.Quiet)
	ui.PrintCompactBanner()

	res := cfg.Resolved()
	tr, err := openTransport(cfg, res)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	defer tr.Close()

	adp, err := adapter.For(cfg.Revision)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	cases := conformance.Suite()
	disp, flushOutputs, err := buildDispatcher(cfg)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	cats := []string(cfg.Categories)
	if len(cats) == 0 {
		cats = conformance.Categories()
	}
	ui.RunManifest(cfg.Target, res.Kind, cfg.Revision, len(cases), cats, cfg.ThrottleMs).Print()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := conformance.NewRunner(tr, adp, disp, conformance.Config{
		Target:        cfg.Target,
		Kind:          res.Kind,
		CoreTimeout:   cfg.CoreTimeout,
		SpecTimeout:   cfg.SpecTimeout,
		ToolTimeout:   cfg.ToolTimeout,
		AsyncTimeout:  cfg.AsyncTimeout,
		Skip:          cfg.Skip,
		SkipLifecycle: cfg.SkipLifecycle,
		Categories:    cfg.Categories,
		Strict:        cfg.Strict,
		ThrottleMs:    cfg.ThrottleMs,
	})

	result, runErr := runner.Run(ctx, cases)
	flushOutputs()
	tr.Close()

	if result == nil {
		exitWithError(defaults.ExitInternalError, "run produced no result: %v", runErr)
	}

	printRunSummary(result)

	if cfg.OutputDir != "" {
		if err := writeRunReport(cfg, res, result); err != nil {
			ui.PrintWarning(fmt.Sprintf("Writing report: %v", err))
		}
	}

	if runErr != nil {
		// Peer stderr is often the fastest diagnosis for a dead subprocess.
		if st, ok := tr.(*transport.Stdio); ok {
			for _, line := range st.Stderr() {
				ui.PrintInfo("peer: " + line)
			}
		}
		exitWithError(defaults.ExitTransportError, "%s: %v", result.ExitReason, runErr)
	}
	os.Exit(result.ExitCode)
}

// openTransport builds the transport matching the resolved target kind.
func openTransport(cfg *config.Config, res *input.Resolved) (transport.Transport, error) {
	switch res.Kind {
	case input.KindStdio:
		env, err := cfg.PeerEnv()
		if err != nil {
			return nil, err
		}
		return transport.NewStdio(transport.StdioConfig{
			Command: res.Command,
			Dir:     cfg.WorkDir,
			Env:     env,
			Verbose: cfg.Verbose,
		}), nil
	case input.KindHTTP:
		return transport.NewHTTP(transport.HTTPConfig{
			Endpoint:        res.Endpoint,
			Headers:         cfg.Headers,
			SessionViaQuery: cfg.SessionViaQuery,
			Insecure:        cfg.Insecure,
			Verbose:         cfg.Verbose,
		})
	default:
		return nil, fmt.Errorf("unknown transport kind %q", res.Kind)
	}
}

// printRunSummary renders the console summary box and compliance meter.
func printRunSummary(result *conformance.RunResult) {
	s := result.Summary
	if s == nil {
		return
	}
	ui.PrintSummary(ui.Summary{
		Total:    s.Totals.Checks,
		Passed:   s.Totals.Passed,
		Failed:   s.Totals.Failed,
		Skipped:  s.Totals.Skipped,
		TimedOut: s.Totals.Timeouts,
		Errored:  s.Totals.Errors,

		Duration:     s.Timing.CompletedAt.Sub(s.Timing.StartedAt),
		ChecksPerSec: checksPerSec(s),

		Target:    s.Target.Endpoint,
		Transport: s.Target.Transport,
		Revision:  s.Target.Revision,

		Score:      result.Compliance.Score,
		Tier:       result.Compliance.Tier,
		Applicable: result.Compliance.Applicable,

		MustPassed:   result.Compliance.Must.Passed,
		MustTotal:    result.Compliance.Must.Total,
		ShouldPassed: result.Compliance.Should.Passed,
		ShouldTotal:  result.Compliance.Should.Total,
		MayPassed:    result.Compliance.May.Passed,
		MayTotal:     result.Compliance.May.Total,
	})
	if result.Compliance.Applicable {
		ui.PrintComplianceMeter(result.Compliance.Score, result.Compliance.Tier)
	}
}

func checksPerSec(s *events.SummaryEvent) float64 {
	if s.Timing.DurationSec <= 0 {
		return 0
	}
	return float64(s.Totals.Checks) / s.Timing.DurationSec
}

// writeRunReport builds the structured run report and writes it as
// report.json next to the per-format writer outputs. compare consumes
// this file.
func writeRunReport(cfg *config.Config, res *input.Resolved, result *conformance.RunResult) error {
	started := result.Summary.Timing.StartedAt
	completed := result.Summary.Timing.CompletedAt

	builder := report.NewReportBuilder(report.ReportConfig{
		RunID:     result.RunID,
		Target:    cfg.Target,
		Transport: res.Kind,
		Revision:  cfg.Revision,
		Format:    report.FormatJSON,
		Started:   started,
		Completed: completed,
	})
	builder.AddResults(result.Results)

	path := filepath.Join(cfg.OutputDir, "report.json")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := report.NewReportGenerator().Generate(builder.Build(), f); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Report written to %s", path))
	return nil
}
