package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runScore executes the score command: it recomputes the weighted
// compliance score from a stored run report. Useful after hand-editing a
// report to answer "what if these checks passed".
func runScore() {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	reportPath := fs.String("report", "", "Run report (JSON) to rescore")
	asJSON := fs.Bool("json", false, "Emit the recomputed compliance as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Parse(os.Args[2:])
	ui.SetNoColor(*noColor)

	// Positional form: mcpconform score report.json
	if *reportPath == "" && fs.NArg() >= 1 {
		*reportPath = fs.Arg(0)
	}
	if *reportPath == "" {
		exitWithUsage(
			"A run report file is required.",
			"mcpconform score report.json",
		)
	}

	r, err := loadReport(*reportPath)
	if err != nil {
		exitWithError(defaults.ExitUserError, "Loading report: %v", err)
	}

	inputs := make([]scoring.Input, 0, len(r.Results))
	for _, rec := range r.Results {
		inputs = append(inputs, scoring.Input{Level: rec.Level, Outcome: rec.Outcome})
	}
	compliance := scoring.Calculate(inputs, r.Target.Revision)

	if *asJSON {
		data, err := jsonutil.MarshalIndent(compliance, "", "  ")
		if err != nil {
			exitWithError(defaults.ExitInternalError, "Marshaling compliance: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	ui.PrintCompactBanner()
	ui.PrintSection("Recomputed Compliance")
	ui.PrintConfigLine("Report", *reportPath)
	if r.Target.Endpoint != "" {
		ui.PrintConfigLine("Target", r.Target.Endpoint)
	}
	if r.Target.Revision != "" {
		ui.PrintConfigLine("Revision", r.Target.Revision)
	}
	fmt.Println()

	for _, level := range scoring.Levels() {
		stats := compliance.Stats(level)
		ui.PrintConfigLine(string(level), fmt.Sprintf("%d/%d passed (weight %g)", stats.Passed, stats.Total, level.Weight()))
	}
	fmt.Println()

	if !compliance.Applicable {
		ui.PrintWarning("No counted checks in the report; score is not meaningful")
		return
	}
	ui.PrintComplianceMeter(compliance.Score, compliance.Tier)

	if stored := r.Summary.Compliance; stored.Applicable && stored.Score != compliance.Score {
		ui.PrintWarning(fmt.Sprintf("Stored score %.1f differs from recomputed %.1f", stored.Score, compliance.Score))
	}
}
