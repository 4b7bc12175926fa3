package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/report"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runCompare executes the compare command: it loads two run reports and
// shows what moved between them.
func runCompare() {
	ui.PrintCompactBanner()
	ui.PrintSection("Run Comparison")

	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	baselinePath := fs.String("baseline", "", "Baseline run report (JSON)")
	currentPath := fs.String("current", "", "Current run report (JSON)")
	format := fs.String("format", "console", "Output format: console, json")
	output := fs.String("o", "", "Output file (default: stdout)")

	fs.Parse(os.Args[2:])

	// Positional form: mcpconform compare baseline.json current.json
	args := fs.Args()
	if *baselinePath == "" && *currentPath == "" && len(args) >= 2 {
		*baselinePath = args[0]
		*currentPath = args[1]
	} else if *baselinePath != "" && *currentPath == "" && len(args) >= 1 {
		*currentPath = args[0]
	} else if *baselinePath == "" && *currentPath != "" && len(args) >= 1 {
		*baselinePath = args[0]
	}

	switch *format {
	case "console", "json":
	default:
		exitWithError(defaults.ExitUserError, "Unknown format %q. Supported: console, json", *format)
	}

	if *baselinePath == "" || *currentPath == "" {
		exitWithUsage(
			"Both -baseline and -current files are required.",
			"mcpconform compare -baseline baseline.json -current current.json\n       mcpconform compare baseline.json current.json",
		)
	}

	baseline, err := loadReport(*baselinePath)
	if err != nil {
		exitWithError(defaults.ExitUserError, "Loading baseline: %v", err)
	}
	current, err := loadReport(*currentPath)
	if err != nil {
		exitWithError(defaults.ExitUserError, "Loading current: %v", err)
	}

	comparison := report.CompareReports(baseline, current)

	switch *format {
	case "json":
		data, err := jsonutil.MarshalIndent(comparison, "", "  ")
		if err != nil {
			exitWithError(defaults.ExitInternalError, "Marshaling comparison: %v", err)
		}
		if *output != "" {
			if err := os.WriteFile(*output, data, 0o644); err != nil {
				exitWithError(defaults.ExitUserError, "Writing output: %v", err)
			}
			ui.PrintSuccess(fmt.Sprintf("Comparison written to %s", *output))
		} else {
			fmt.Println(string(data))
		}
	case "console":
		printComparison(comparison)
	}

	// Regressions fail the command so CI can gate on them.
	if len(comparison.NewFailures) > 0 {
		os.Exit(defaults.ExitNonCompliant)
	}
}

// loadReport reads a JSON run report from disk.
func loadReport(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := jsonutil.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}

// printComparison renders a comparison to the terminal.
func printComparison(c *report.ComparisonReport) {
	fmt.Println()
	ui.PrintConfigLine("Baseline", c.BaselineDate.Format("2006-01-02 15:04:05"))
	ui.PrintConfigLine("Current", c.CurrentDate.Format("2006-01-02 15:04:05"))
	ui.PrintConfigLine("Trend", c.Trend)
	ui.PrintConfigLine("Score delta", fmt.Sprintf("%+.1f", c.ScoreDelta))
	fmt.Println()

	if len(c.NewFailures) > 0 {
		ui.PrintSection(fmt.Sprintf("New Failures (%d)", len(c.NewFailures)))
		for _, r := range c.NewFailures {
			ui.PrintBracketedInfo(
				ui.OutcomeBracket(string(r.Outcome)),
				ui.CategoryBracket(r.Category),
				ui.LevelBracket(string(r.Level)),
				ui.TextBracket(r.Name),
			)
		}
		fmt.Println()
	}

	if len(c.Fixed) > 0 {
		ui.PrintSection(fmt.Sprintf("Fixed (%d)", len(c.Fixed)))
		for _, r := range c.Fixed {
			ui.PrintBracketedInfo(
				ui.CategoryBracket(r.Category),
				ui.LevelBracket(string(r.Level)),
				ui.TextBracket(r.Name),
			)
		}
		fmt.Println()
	}

	if len(c.StillFailing) > 0 {
		ui.PrintSection(fmt.Sprintf("Still Failing (%d)", len(c.StillFailing)))
		for _, r := range c.StillFailing {
			ui.PrintBracketedInfo(
				ui.OutcomeBracket(string(r.Outcome)),
				ui.CategoryBracket(r.Category),
				ui.LevelBracket(string(r.Level)),
				ui.TextBracket(r.Name),
			)
		}
		fmt.Println()
	}

	switch c.Trend {
	case "improving":
		ui.PrintSuccess(c.Summary)
	case "degrading":
		ui.PrintError(c.Summary)
	default:
		ui.PrintInfo(c.Summary)
	}
}
