package main

import (
	"fmt"
	"os"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// exitWithError prints a formatted error message and exits with the given
// code. Use this instead of ui.PrintError + os.Exit for consistent CLI
// error handling.
func exitWithError(code int, format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(code)
}

// exitWithUsage prints an error message followed by a usage hint, then
// exits with the usage-error code.
func exitWithUsage(msg, usage string) {
	ui.PrintError(msg)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:", usage)
	os.Exit(defaults.ExitUserError)
}
