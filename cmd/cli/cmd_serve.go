package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/refserver"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runServe executes the serve command: it starts the reference server on
// an HTTP listener or over stdin/stdout.
func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":3000", "HTTP listen address")
	stdio := fs.Bool("stdio", false, "Serve one session over stdin/stdout instead of HTTP")
	name := fs.String("name", "", "serverInfo.name in the initialize response")
	instructions := fs.String("instructions", "", "Usage text advertised at initialize")
	pageSize := fs.Int("page-size", 0, "tools/list page size (0 = single page)")
	verbose := fs.Bool("verbose", false, "Log every frame")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Parse(os.Args[2:])
	ui.SetNoColor(*noColor)

	srv := refserver.New(refserver.Config{
		Name:         *name,
		Instructions: *instructions,
		PageSize:     *pageSize,
		Verbose:      *verbose,
	}, nil)
	defer srv.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *stdio {
		// Stdout carries the protocol, so all human output goes elsewhere.
		ui.SetSilent(true)
		srv.MarkReady()
		if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			exitWithError(defaults.ExitInternalError, "stdio serve: %v", err)
		}
		return
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: duration.DialTimeout,
	}

	ui.PrintCompactBanner()
	ui.ServeManifest(*addr, adapter.Revisions()).Print()

	errCh := make(chan error, 1)
	go func() {
		srv.MarkReady()
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitWithError(defaults.ExitTransportError, "listen on %s: %v", *addr, err)
		}
	case <-ctx.Done():
		ui.PrintInfo("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			ui.PrintWarning(fmt.Sprintf("Shutdown: %v", err))
		}
	}
}
