package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mcpconform/mcpconform/pkg/conformance"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/input"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/ui"
)

// runChecks executes the checks command: it lists the built-in suite,
// optionally filtered by category or requirement level.
func runChecks() {
	fs := flag.NewFlagSet("checks", flag.ExitOnError)
	var categories input.StringSliceFlag
	fs.Var(&categories, "category", "Keep only these categories: "+strings.Join(conformance.Categories(), ", "))
	fs.Var(&categories, "c", "Category filter (alias)")
	level := fs.String("level", "", "Keep only this requirement level: MUST, SHOULD, MAY")
	asJSON := fs.Bool("json", false, "Emit the list as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Parse(os.Args[2:])
	ui.SetNoColor(*noColor)

	want := scoring.Level(strings.ToUpper(*level))
	switch want {
	case "", scoring.LevelMust, scoring.LevelShould, scoring.LevelMay:
	default:
		exitWithError(defaults.ExitUserError, "Unknown level %q. Supported: MUST, SHOULD, MAY", *level)
	}

	selected := filterChecks(conformance.Suite(), categories, want)

	if *asJSON {
		type checkInfo struct {
			Name     string   `json:"name"`
			Category string   `json:"category"`
			Level    string   `json:"level"`
			Tags     []string `json:"tags,omitempty"`
		}
		list := make([]checkInfo, 0, len(selected))
		for _, tc := range selected {
			list = append(list, checkInfo{
				Name:     tc.Name,
				Category: tc.Category,
				Level:    string(tc.Level),
				Tags:     tc.Tags,
			})
		}
		data, err := jsonutil.MarshalIndent(list, "", "  ")
		if err != nil {
			exitWithError(defaults.ExitInternalError, "Marshaling checks: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	ui.PrintCompactBanner()
	ui.PrintSection(fmt.Sprintf("Built-in Checks (%d)", len(selected)))
	fmt.Println()

	lastCategory := ""
	for _, tc := range selected {
		if tc.Category != lastCategory {
			if lastCategory != "" {
				fmt.Println()
			}
			fmt.Println(ui.SubtitleStyle.Render(strings.ToUpper(tc.Category)))
			lastCategory = tc.Category
		}
		parts := []ui.BracketPart{
			ui.LevelBracket(string(tc.Level)),
			ui.TextBracket(tc.Name),
		}
		if len(tc.Tags) > 0 {
			parts = append(parts, ui.MutedBracket(strings.Join(tc.Tags, ",")))
		}
		ui.PrintBracketedInfo(parts...)
	}
	fmt.Println()
}

// filterChecks applies the category and level filters, keeping suite order.
func filterChecks(cases []conformance.TestCase, categories []string, level scoring.Level) []conformance.TestCase {
	keepCategory := func(c string) bool {
		if len(categories) == 0 {
			return true
		}
		for _, want := range categories {
			if strings.EqualFold(want, c) {
				return true
			}
		}
		return false
	}

	var out []conformance.TestCase
	for _, tc := range cases {
		if !keepCategory(tc.Category) {
			continue
		}
		if level != "" && tc.Level != level {
			continue
		}
		out = append(out, tc)
	}
	return out
}
