package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/config"
	"github.com/mcpconform/mcpconform/pkg/conformance"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/input"
	"github.com/mcpconform/mcpconform/pkg/refserver"
	"github.com/mcpconform/mcpconform/pkg/transport"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runSelftest executes the selftest command: it starts the reference
// server on a loopback port and runs the full suite against it. A clean
// exit proves harness and reference server agree on every check.
func runSelftest() {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)
	revision := fs.String("revision", adapter.Latest(), "Protocol revision to exercise: "+joinRevisions())
	strict := fs.Bool("strict", false, "Any counted failure fails the run, not just MUST")
	verbose := fs.Bool("verbose", false, "Verbose output")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Parse(os.Args[2:])

	ui.SetNoColor(*noColor)
	ui.SetSilent(*quiet)

	if !adapter.Supported(*revision) {
		exitWithError(defaults.ExitUserError, "Unsupported revision %q (supported: %s)", *revision, joinRevisions())
	}

	srv := refserver.New(refserver.Config{Verbose: *verbose}, nil)
	defer srv.Stop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		exitWithError(defaults.ExitInternalError, "listen: %v", err)
	}
	httpSrv := &http.Server{Handler: srv.HTTPHandler()}
	go httpSrv.Serve(ln)
	defer httpSrv.Close()
	srv.MarkReady()

	endpoint := fmt.Sprintf("http://%s/mcp", ln.Addr())
	ui.PrintCompactBanner()
	ui.PrintSection("Self-Test")
	ui.PrintConfigLine("Endpoint", endpoint)
	ui.PrintConfigLine("Revision", *revision)

	tr, err := transport.NewHTTP(transport.HTTPConfig{Endpoint: endpoint, Verbose: *verbose})
	if err != nil {
		exitWithError(defaults.ExitInternalError, "transport: %v", err)
	}
	defer tr.Close()

	adp, err := adapter.For(*revision)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	disp, flushOutputs, err := buildDispatcher(&config.Config{
		Formats: input.StringSliceFlag{"console"},
		Quiet:   *quiet,
		Verbose: *verbose,
	})
	if err != nil {
		exitWithError(defaults.ExitInternalError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := conformance.NewRunner(tr, adp, disp, conformance.Config{
		Target: endpoint,
		Kind:   conformance.TransportHTTP,
		Strict: *strict,
	})

	result, runErr := runner.Run(ctx, conformance.Suite())
	flushOutputs()

	if result == nil {
		exitWithError(defaults.ExitInternalError, "selftest produced no result: %v", runErr)
	}
	printRunSummary(result)

	if runErr != nil {
		exitWithError(defaults.ExitTransportError, "%s: %v", result.ExitReason, runErr)
	}
	if result.ExitCode != defaults.ExitSuccess {
		ui.PrintError("Self-test found disagreements between harness and reference server")
	} else {
		ui.PrintSuccess("Harness and reference server agree on every check")
	}
	os.Exit(result.ExitCode)
}

func joinRevisions() string {
	out := ""
	for i, r := range adapter.Revisions() {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
