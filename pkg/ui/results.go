package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ResultFormatter formats check results for display
type ResultFormatter struct {
	verbose    bool
	showDetail bool
}

// NewResultFormatter creates a new result formatter
func NewResultFormatter(verbose, showDetail bool) *ResultFormatter {
	return &ResultFormatter{
		verbose:    verbose,
		showDetail: showDetail,
	}
}

// FormatResult formats a single check result in nuclei-style
// Output: [level] [category] [outcome] check-name [latency]
func (rf *ResultFormatter) FormatResult(name, category, level, outcome string, latencyMs float64, message string) string {
	var parts []string

	// Requirement-level badge
	lvlStyle := LevelStyle(level)
	parts = append(parts, BracketStyle.Render("[")+lvlStyle.Render(strings.ToLower(level))+BracketStyle.Render("]"))

	// Category
	parts = append(parts, BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"))

	// Outcome
	outcomeStyle := OutcomeStyle(outcome)
	parts = append(parts, BracketStyle.Render("[")+outcomeStyle.Render(strings.ToLower(outcome))+BracketStyle.Render("]"))

	// Check name
	parts = append(parts, StatValueStyle.Render(name))

	// Latency
	latencyStr := formatLatency(latencyMs)
	parts = append(parts, BracketStyle.Render("[")+StatLabelStyle.Render(latencyStr)+BracketStyle.Render("]"))

	result := strings.Join(parts, " ")

	// Add the verdict detail if requested
	if rf.showDetail && message != "" {
		truncated := truncateString(message, 60)
		result += "\n      " + SubtitleStyle.Render("-> "+truncated)
	}

	return result
}

// FormatFailure formats a failed check with more detail
func (rf *ResultFormatter) FormatFailure(name, category, level string, latencyMs float64, message string) string {
	output := strings.Builder{}

	// Header line
	output.WriteString(FailStyle.Render("  [X] REQUIREMENT NOT MET"))
	output.WriteString("\n")

	// Details
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Check:"),
		StatValueStyle.Render(name),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Category:"),
		CategoryStyle.Render(category),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Level:"),
		LevelStyle(level).Render(strings.ToUpper(level)),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Latency:"),
		StatLabelStyle.Render(formatLatency(latencyMs)),
	))

	if message != "" {
		output.WriteString(fmt.Sprintf("    %s %s\n",
			ConfigLabelStyle.Render("Verdict:"),
			SubtitleStyle.Render(truncateString(message, 80)),
		))
	}

	return output.String()
}

// FormatError formats an errored check
func (rf *ResultFormatter) FormatError(name, category, errorMsg string) string {
	return fmt.Sprintf("  %s %s %s %s: %s",
		ErrorStyle.Render("!"),
		BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"),
		StatValueStyle.Render(name),
		ErrorStyle.Render("Error"),
		SubtitleStyle.Render(truncateString(errorMsg, 50)),
	)
}

// formatLatency formats latency in a human-readable way
func formatLatency(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

// truncateString truncates a string with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// StatusBracket returns a formatted status code bracket
func StatusBracket(code int) string {
	statusStyle := StatusCodeStyle(code)
	return statusStyle.Render(fmt.Sprintf("%d", code))
}

// Summary holds the outcome of one conformance run
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	TimedOut int
	Errored  int

	Duration     time.Duration
	ChecksPerSec float64

	Target    string
	Transport string
	Revision  string

	// Weighted compliance
	Score      float64
	Tier       string
	Applicable bool

	// Per-level coverage
	MustPassed   int
	MustTotal    int
	ShouldPassed int
	ShouldTotal  int
	MayPassed    int
	MayTotal     int
}

// PrintSummary prints a summary box for one run
func PrintSummary(s Summary) {
	fmt.Println()
	PrintSection("Conformance Summary")
	fmt.Println()

	// Target info
	fmt.Printf("  %s %s\n",
		ConfigLabelStyle.Render("Target:"),
		URLStyle.Render(s.Target),
	)

	if s.Transport != "" {
		fmt.Printf("  %s %s\n",
			ConfigLabelStyle.Render("Transport:"),
			CategoryStyle.Render(s.Transport),
		)
	}

	if s.Revision != "" {
		fmt.Printf("  %s %s\n",
			ConfigLabelStyle.Render("Revision:"),
			StatValueStyle.Render(s.Revision),
		)
	}

	fmt.Println()

	// Results box - simple fixed-width layout
	// Use simple ASCII to avoid Unicode width issues
	boxWidth := 50

	topBorder := "+" + strings.Repeat("-", boxWidth-2) + "+"
	bottomBorder := "+" + strings.Repeat("-", boxWidth-2) + "+"
	separator := "+" + strings.Repeat("-", boxWidth-2) + "+"

	fmt.Println(BracketStyle.Render("  " + topBorder))

	// Simple row format: "|  Label:          Value                    |"
	printRow := func(label string, value string, valueStyle lipgloss.Style) {
		// Fixed widths: label=18, value fills rest
		const labelW = 18
		const totalInner = 46 // boxWidth - 4 for borders and spaces

		// Pad label to fixed width
		labelPadded := label
		for len(labelPadded) < labelW {
			labelPadded += " "
		}

		// Calculate value padding (use rune count for visible width)
		valueW := totalInner - labelW
		valuePadded := value
		for len([]rune(valuePadded)) < valueW {
			valuePadded += " "
		}

		fmt.Printf("  |  %s%s|\n",
			StatLabelStyle.Render(labelPadded),
			valueStyle.Render(valuePadded),
		)
	}

	// Total checks
	printRow("Total Checks:", fmt.Sprintf("%d", s.Total), StatValueStyle)

	// Separator
	fmt.Println(BracketStyle.Render("  " + separator))

	// Outcome breakdown - use simple text symbols
	printRow("Passed:", fmt.Sprintf("[OK] %d", s.Passed), PassStyle)
	printRow("Failed:", fmt.Sprintf("[!!] %d", s.Failed), FailStyle)
	printRow("Skipped:", fmt.Sprintf("[--] %d", s.Skipped), SkipStyle)
	printRow("Timed Out:", fmt.Sprintf("[~~] %d", s.TimedOut), TimeoutStyle)
	printRow("Errors:", fmt.Sprintf("[??] %d", s.Errored), ErrorStyle)

	// Separator
	fmt.Println(BracketStyle.Render("  " + separator))

	// Requirement-level coverage
	printRow("MUST:", levelCell(s.MustPassed, s.MustTotal), levelCellStyle(s.MustPassed, s.MustTotal, FailStyle))
	printRow("SHOULD:", levelCell(s.ShouldPassed, s.ShouldTotal), levelCellStyle(s.ShouldPassed, s.ShouldTotal, ErrorStyle))
	printRow("MAY:", levelCell(s.MayPassed, s.MayTotal), levelCellStyle(s.MayPassed, s.MayTotal, StatValueStyle))

	// Separator
	fmt.Println(BracketStyle.Render("  " + separator))

	// Performance stats
	printRow("Duration:", formatDuration(s.Duration), StatValueStyle)
	printRow("Checks/sec:", fmt.Sprintf("%.1f", s.ChecksPerSec), StatValueStyle)

	fmt.Println(BracketStyle.Render("  " + bottomBorder))

	// Weighted score meter
	fmt.Println()
	if s.Applicable {
		PrintComplianceMeter(s.Score, s.Tier)
	} else {
		fmt.Printf("  %s %s\n",
			StatLabelStyle.Render("Compliance:"),
			SubtitleStyle.Render("not applicable (no counted checks)"),
		)
	}

	// Final verdict
	fmt.Println()
	switch {
	case s.Failed > 0:
		PrintError(fmt.Sprintf("%d requirements not met - see the report for details", s.Failed))
	case s.TimedOut > 0:
		PrintWarning(fmt.Sprintf("%d checks timed out - the peer may be overloaded", s.TimedOut))
	case s.Errored > 0:
		PrintWarning("Errors occurred during the run - results may be incomplete")
	default:
		PrintSuccess("All applicable requirements satisfied")
	}
	fmt.Println()
}

// formatDuration formats a duration as MM:SS or HH:MM:SS
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// levelCell renders one "passed/total" coverage cell
func levelCell(passed, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d/%d passed", passed, total)
}

// levelCellStyle picks the style for a coverage cell: green when clean,
// the failure style of that level otherwise.
func levelCellStyle(passed, total int, failStyle lipgloss.Style) lipgloss.Style {
	if total == 0 {
		return SkipStyle
	}
	if passed == total {
		return PassStyle
	}
	return failStyle
}

// PrintComplianceMeter prints a visual compliance score meter
func PrintComplianceMeter(score float64, tier string) {
	barWidth := 25

	var color lipgloss.Color
	var icon string
	switch tier {
	case "Fully Compliant":
		color = lipgloss.Color("#00D26A")
		icon = "[+]"
	case "Substantially Compliant":
		color = lipgloss.Color("#6BCB77")
		icon = "[+]"
	case "Partially Compliant":
		color = lipgloss.Color("#FFD93D")
		icon = "[!]"
	case "Minimally Compliant":
		color = lipgloss.Color("#FF8C00")
		icon = "[!]"
	default:
		color = lipgloss.Color("#FF0000")
		icon = "[X]"
	}

	filled := int(float64(barWidth) * score / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Builder{}
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar.WriteString(lipgloss.NewStyle().Foreground(color).Render("#"))
		} else {
			bar.WriteString(ProgressEmptyStyle.Render("."))
		}
	}

	scoreStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	// Print on single line - avoid style rendering issues
	labelStyled := StatLabelStyle.Render("Compliance: ")
	fmt.Printf("  %s%s %s %s %s\n",
		labelStyled,
		bar.String(),
		scoreStyle.Render(fmt.Sprintf("%.1f%%", score)),
		icon,
		TierStyle(tier).Render(tier),
	)
}

// padRight pads a string to the right to reach a specific width
// Uses lipgloss.Width to correctly measure visible width (excludes ANSI codes)
func padRight(s string, width int) string {
	visibleWidth := lipgloss.Width(s)
	padding := width - visibleWidth
	if padding <= 0 {
		return s
	}
	return s + strings.Repeat(" ", padding)
}

// PrintLiveResult prints a single result during execution (for verbose mode)
func PrintLiveResult(outcome, name, category, level string) {
	switch strings.ToLower(outcome) {
	case "failed":
		fmt.Printf("\n  %s %s %s %s\n",
			FailStyle.Render("[X]"),
			LevelStyle(level).Render(strings.ToLower(level)),
			BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"),
			StatValueStyle.Render(name),
		)
	case "timedout":
		fmt.Printf("\n  %s %s %s\n",
			TimeoutStyle.Render("[~]"),
			BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"),
			StatValueStyle.Render(name),
		)
	case "errored":
		fmt.Printf("\n  %s %s %s\n",
			ErrorStyle.Render("[!]"),
			BracketStyle.Render("[")+CategoryStyle.Render(category)+BracketStyle.Render("]"),
			StatValueStyle.Render(name),
		)
	}
}
