// Package writers provides output writers for various formats.
package writers

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*MarkdownWriter)(nil)

// MarkdownConfig configures the Markdown report writer.
type MarkdownConfig struct {
	// Title is the report title (default: "MCP Conformance Report")
	Title string

	// Flavor sets the Markdown flavor: "github", "gitlab", or "standard" (default: "github")
	Flavor string

	// SortBy sets the sorting order: "level", "category", or "name" (default: "level")
	// Can be overridden by MARKDOWN_EXPORT_SORT_MODE environment variable.
	SortBy string

	// IncludeTOC includes a table of contents (default: true)
	IncludeTOC bool

	// IncludeEvidence includes wire exchanges for failed checks (default: true)
	IncludeEvidence bool

	// CollapseSections uses details/summary for collapsible sections (default: true)
	CollapseSections bool

	// ShowExecutiveSummary includes an executive summary section with key metrics (default: true)
	ShowExecutiveSummary bool

	// ShowOutcomeBars includes visual ASCII outcome distribution bars (default: true)
	ShowOutcomeBars bool

	// UseEmojis includes level/outcome emojis in the report (default: true)
	UseEmojis bool

	// MaxExchangeLen truncates request/response display to this length (default: 2048)
	MaxExchangeLen int
}

// MarkdownWriter writes events as a Markdown report.
// It buffers all events in memory and renders the complete Markdown document on Close.
// The writer is safe for concurrent use.
type MarkdownWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  MarkdownConfig
	results []*events.ResultEvent
	summary *events.SummaryEvent
}

// NewMarkdownWriter creates a new Markdown report writer.
// The writer buffers all events and writes a complete Markdown report on Close.
func NewMarkdownWriter(w io.Writer, config MarkdownConfig) *MarkdownWriter {
	if config.Title == "" {
		config.Title = "MCP Conformance Report"
	}
	if config.Flavor == "" {
		config.Flavor = "github"
	}
	// Environment variable override for sort mode (Nuclei-style)
	if envSort := os.Getenv("MARKDOWN_EXPORT_SORT_MODE"); envSort != "" {
		config.SortBy = envSort
	}
	if config.SortBy == "" {
		config.SortBy = "level"
	}
	if config.MaxExchangeLen == 0 {
		config.MaxExchangeLen = 2048
	}
	// If no section toggles are explicitly set, enable all by default
	if !config.IncludeTOC && !config.IncludeEvidence && !config.CollapseSections &&
		!config.ShowExecutiveSummary && !config.ShowOutcomeBars && !config.UseEmojis {
		config.IncludeTOC = true
		config.IncludeEvidence = true
		config.CollapseSections = true
		config.ShowExecutiveSummary = true
		config.ShowOutcomeBars = true
		config.UseEmojis = true
	}
	return &MarkdownWriter{
		w:       w,
		config:  config,
		results: make([]*events.ResultEvent, 0),
	}
}

// Write buffers an event for later Markdown output.
func (mw *MarkdownWriter) Write(event events.Event) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch e := event.(type) {
	case *events.ResultEvent:
		mw.results = append(mw.results, e)
	case *events.SummaryEvent:
		mw.summary = e
	}
	return nil
}

// Flush is a no-op for Markdown writer.
// All events are written as a single Markdown document on Close.
func (mw *MarkdownWriter) Flush() error {
	return nil
}

// Close renders and writes the complete Markdown report.
func (mw *MarkdownWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	sb := &strings.Builder{}
	mw.renderMarkdown(sb)

	if _, err := io.WriteString(mw.w, sb.String()); err != nil {
		return fmt.Errorf("failed to write Markdown: %w", err)
	}

	if closer, ok := mw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for result and summary events.
func (mw *MarkdownWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeResult, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// levelEmoji returns the emoji icon for a requirement level.
func levelEmoji(l events.Level) string {
	switch l {
	case events.LevelMust:
		return "🔴"
	case events.LevelShould:
		return "🟠"
	default:
		return "🔵"
	}
}

// levelPriority returns a numeric priority for sorting (higher = stronger requirement).
func levelPriority(l events.Level) int {
	switch l {
	case events.LevelMust:
		return 3
	case events.LevelShould:
		return 2
	case events.LevelMay:
		return 1
	default:
		return 0
	}
}

// outcomeIcon returns the emoji icon for an outcome.
func outcomeIcon(o events.Outcome) string {
	switch o {
	case events.OutcomePassed:
		return "✅"
	case events.OutcomeFailed:
		return "⚠️"
	case events.OutcomeSkipped:
		return "⏭️"
	case events.OutcomeTimedOut:
		return "⏱️"
	case events.OutcomeErrored:
		return "❌"
	default:
		return "ℹ️"
	}
}

// outcomeFails reports whether an outcome counts against the score.
func outcomeFails(o events.Outcome) bool {
	switch o {
	case events.OutcomeFailed, events.OutcomeTimedOut, events.OutcomeErrored:
		return true
	default:
		return false
	}
}

// renderOutcomeBar generates a text-based outcome distribution bar.
func renderOutcomeBar(counts map[events.Outcome]int, total int, useEmojis bool) string {
	if total == 0 {
		return "*No checks executed*\n"
	}

	sb := &strings.Builder{}
	sb.WriteString("```\n")

	outcomes := []events.Outcome{
		events.OutcomePassed,
		events.OutcomeFailed,
		events.OutcomeTimedOut,
		events.OutcomeErrored,
		events.OutcomeSkipped,
	}

	maxBarLen := 20
	for _, o := range outcomes {
		count := counts[o]
		if count == 0 {
			continue
		}

		pct := float64(count) / float64(total) * 100
		barLen := int(float64(count) / float64(total) * float64(maxBarLen))
		if barLen == 0 && count > 0 {
			barLen = 1
		}

		bar := strings.Repeat("█", barLen) + strings.Repeat("░", maxBarLen-barLen)
		emoji := ""
		if useEmojis {
			emoji = outcomeIcon(o) + " "
		}
		sb.WriteString(fmt.Sprintf("%s%-9s %s %d (%.0f%%)\n", emoji, string(o), bar, count, pct))
	}
	sb.WriteString("```\n")

	return sb.String()
}

func (mw *MarkdownWriter) renderMarkdown(sb *strings.Builder) {
	// Sort results based on config
	sortedResults := mw.sortResults()

	// Count outcomes and failing MUST checks
	outcomeCounts := make(map[events.Outcome]int)
	totalFailed := 0
	mustFailed := 0
	for _, r := range sortedResults {
		outcomeCounts[r.Result.Outcome]++
		if outcomeFails(r.Result.Outcome) {
			totalFailed++
			if r.Check.Level == events.LevelMust {
				mustFailed++
			}
		}
	}

	// Render title
	sb.WriteString(fmt.Sprintf("# %s\n\n", mw.config.Title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", time.Now().Format("2006-01-02 15:04:05 MST")))

	// Render Table of Contents
	if mw.config.IncludeTOC {
		mw.renderTOC(sb)
	}

	// Render executive summary
	if mw.config.ShowExecutiveSummary {
		mw.renderExecutiveSummary(sb, totalFailed, mustFailed)
	}

	// Render summary section
	mw.renderSummary(sb, totalFailed)

	// Render outcome distribution bars
	if mw.config.ShowOutcomeBars {
		sb.WriteString("## Outcome Distribution\n\n")
		sb.WriteString(renderOutcomeBar(outcomeCounts, len(sortedResults), mw.config.UseEmojis))
		sb.WriteString("\n")
	}

	// Render compliance-by-level table
	mw.renderLevelTable(sb)

	// Render category breakdown
	mw.renderCategoryTable(sb)

	// Render check results
	mw.renderResults(sb, sortedResults)
}

func (mw *MarkdownWriter) renderTOC(sb *strings.Builder) {
	sb.WriteString("## Table of Contents\n\n")
	if mw.config.ShowExecutiveSummary {
		sb.WriteString("- [Executive Summary](#executive-summary)\n")
	}
	sb.WriteString("- [Summary](#summary)\n")
	if mw.config.ShowOutcomeBars {
		sb.WriteString("- [Outcome Distribution](#outcome-distribution)\n")
	}
	sb.WriteString("- [Compliance by Level](#compliance-by-level)\n")
	sb.WriteString("- [Category Breakdown](#category-breakdown)\n")
	sb.WriteString("- [Check Results](#check-results)\n")
	sb.WriteString("\n")
}

// renderExecutiveSummary renders a high-level executive summary section.
func (mw *MarkdownWriter) renderExecutiveSummary(sb *strings.Builder, totalFailed, mustFailed int) {
	sb.WriteString("## Executive Summary\n\n")

	// Key metrics table
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")

	totalChecks := len(mw.results)
	sb.WriteString(fmt.Sprintf("| Total Checks | %d |\n", totalChecks))

	if mw.summary != nil {
		sb.WriteString(fmt.Sprintf("| Compliance Score | %.1f%% |\n", mw.summary.Compliance.Score))
		sb.WriteString(fmt.Sprintf("| Tier | **%s** |\n", mw.summary.Compliance.Tier))
	}

	sb.WriteString(fmt.Sprintf("| Failed Checks | %d |\n", totalFailed))
	sb.WriteString(fmt.Sprintf("| Failed MUST Requirements | %d |\n", mustFailed))
	sb.WriteString("\n")

	// Key recommendations
	sb.WriteString("### Key Recommendations\n\n")

	recommendations := mw.generateRecommendations(totalFailed, mustFailed)
	for i, rec := range recommendations {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
	}
	sb.WriteString("\n")
}

// generateRecommendations generates context-aware recommendations based on results.
func (mw *MarkdownWriter) generateRecommendations(totalFailed, mustFailed int) []string {
	recommendations := make([]string, 0, 5)

	if mustFailed > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("**URGENT:** Fix %d failing MUST requirements; these block interoperability with spec-conformant clients", mustFailed))
	}

	if mw.summary != nil {
		switch {
		case mw.summary.Compliance.Score >= 100:
			recommendations = append(recommendations,
				"Server is fully conformant; keep this suite in CI to catch regressions")
		case mw.summary.Compliance.Score >= 90:
			recommendations = append(recommendations,
				"Close the remaining SHOULD-level gaps to reach full conformance")
		case mw.summary.Compliance.Score >= 50:
			recommendations = append(recommendations,
				"Prioritize lifecycle and protocol-shape failures; most clients reject servers that fail these")
		default:
			recommendations = append(recommendations,
				"Large portions of the protocol are unimplemented or broken; start from the initialize handshake")
		}

		if mw.summary.Totals.Timeouts > 0 {
			recommendations = append(recommendations,
				fmt.Sprintf("Investigate %d timed-out checks; slow responses degrade every client", mw.summary.Totals.Timeouts))
		}
	}

	// Default recommendation if none generated
	if len(recommendations) == 0 {
		if totalFailed == 0 {
			recommendations = append(recommendations, "All executed checks passed; continue monitoring")
		} else {
			recommendations = append(recommendations, "Review failing checks and update the server accordingly")
		}
	}

	return recommendations
}

func (mw *MarkdownWriter) renderSummary(sb *strings.Builder, totalFailed int) {
	sb.WriteString("## Summary\n\n")

	if mw.summary != nil {
		sb.WriteString(fmt.Sprintf("**Target:** %s\n\n", mw.summary.Target.Endpoint))
		if mw.summary.Target.Revision != "" {
			sb.WriteString(fmt.Sprintf("**Protocol Revision:** %s\n\n", mw.summary.Target.Revision))
		}
		if mw.summary.Target.ServerName != "" {
			sb.WriteString(fmt.Sprintf("**Server:** %s\n\n", mw.summary.Target.ServerName))
		}

		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Checks | %d |\n", mw.summary.Totals.Checks))
		sb.WriteString(fmt.Sprintf("| Passed | %d |\n", mw.summary.Totals.Passed))
		sb.WriteString(fmt.Sprintf("| Failed | %d |\n", mw.summary.Totals.Failed))
		sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", mw.summary.Totals.Skipped))
		sb.WriteString(fmt.Sprintf("| Score | %.1f%% |\n", mw.summary.Compliance.Score))
		sb.WriteString(fmt.Sprintf("| Tier | **%s** |\n", mw.summary.Compliance.Tier))
		sb.WriteString(fmt.Sprintf("| Duration | %.2fs |\n", mw.summary.Timing.DurationSec))
		sb.WriteString("\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Total Results:** %d\n", len(mw.results)))
		sb.WriteString(fmt.Sprintf("**Total Failed:** %d\n\n", totalFailed))
	}
}

func (mw *MarkdownWriter) renderLevelTable(sb *strings.Builder) {
	sb.WriteString("## Compliance by Level\n\n")
	sb.WriteString("| Level | Checks | Passed | Pass Rate | Status |\n")
	sb.WriteString("|-------|--------|--------|-----------|--------|\n")

	for _, level := range scoring.Levels() {
		stat := mw.levelStat(level)
		status := "✅ Pass"
		switch {
		case stat.total == 0:
			status = "⏭️ N/A"
		case stat.passed < stat.total:
			status = "⚠️ Fail"
		}
		rate := "-"
		if stat.total > 0 {
			rate = fmt.Sprintf("%.0f%%", float64(stat.passed)/float64(stat.total)*100)
		}
		emoji := ""
		if mw.config.UseEmojis {
			emoji = levelEmoji(level) + " "
		}
		sb.WriteString(fmt.Sprintf("| %s%s | %d | %d | %s | %s |\n",
			emoji, string(level), stat.total, stat.passed, rate, status))
	}
	sb.WriteString("\n")
}

type levelStat struct {
	total  int
	passed int
}

// levelStat counts exercised checks at one requirement level.
// Skipped checks do not count toward the total.
func (mw *MarkdownWriter) levelStat(level events.Level) levelStat {
	var stat levelStat
	for _, r := range mw.results {
		if r.Check.Level != level || r.Result.Outcome == events.OutcomeSkipped {
			continue
		}
		stat.total++
		if r.Result.Outcome == events.OutcomePassed {
			stat.passed++
		}
	}
	return stat
}

func (mw *MarkdownWriter) renderCategoryTable(sb *strings.Builder) {
	stats := make(map[string]levelStat)
	for _, r := range mw.results {
		if r.Result.Outcome == events.OutcomeSkipped {
			continue
		}
		stat := stats[r.Check.Category]
		stat.total++
		if r.Result.Outcome == events.OutcomePassed {
			stat.passed++
		}
		stats[r.Check.Category] = stat
	}
	if len(stats) == 0 {
		return
	}

	sb.WriteString("## Category Breakdown\n\n")
	sb.WriteString("| Category | Checks | Passed | Failed |\n")
	sb.WriteString("|----------|--------|--------|--------|\n")

	// Sort categories for consistent output
	categories := make([]string, 0, len(stats))
	for c := range stats {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		stat := stats[c]
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", c, stat.total, stat.passed, stat.total-stat.passed))
	}
	sb.WriteString("\n")
}

func (mw *MarkdownWriter) renderResults(sb *strings.Builder, results []*events.ResultEvent) {
	sb.WriteString("## Check Results\n\n")

	if len(results) == 0 {
		sb.WriteString("*No results to report.*\n\n")
		return
	}

	// Group results for collapsible sections based on outcome
	if mw.config.CollapseSections && mw.supportsCollapsible() {
		mw.renderCollapsibleResults(sb, results)
	} else {
		mw.renderResultsTable(sb, results)
	}
}

func (mw *MarkdownWriter) supportsCollapsible() bool {
	return mw.config.Flavor == "github" || mw.config.Flavor == "gitlab"
}

func (mw *MarkdownWriter) renderCollapsibleResults(sb *strings.Builder, results []*events.ResultEvent) {
	// Group by outcome first (failures first, then others)
	failures := make([]*events.ResultEvent, 0)
	others := make([]*events.ResultEvent, 0)

	for _, r := range results {
		if outcomeFails(r.Result.Outcome) {
			failures = append(failures, r)
		} else {
			others = append(others, r)
		}
	}

	// Render failures in an open collapsible section
	if len(failures) > 0 {
		sb.WriteString("<details open>\n")
		sb.WriteString(fmt.Sprintf("<summary><strong>⚠️ Failures (%d)</strong></summary>\n\n", len(failures)))
		mw.renderResultsTable(sb, failures)
		sb.WriteString("</details>\n\n")
	}

	// Render passing and skipped checks collapsed
	if len(others) > 0 {
		sb.WriteString("<details>\n")
		sb.WriteString(fmt.Sprintf("<summary><strong>Other Results (%d)</strong></summary>\n\n", len(others)))
		mw.renderResultsTable(sb, others)
		sb.WriteString("</details>\n\n")
	}
}

func (mw *MarkdownWriter) renderResultsTable(sb *strings.Builder, results []*events.ResultEvent) {
	sb.WriteString("| Level | Check | Category | Outcome | Duration | Message |\n")
	sb.WriteString("|-------|-------|----------|---------|----------|---------|\n")

	for _, r := range results {
		lvlEmoji := ""
		outcEmoji := ""
		if mw.config.UseEmojis {
			lvlEmoji = levelEmoji(r.Check.Level) + " "
			outcEmoji = outcomeIcon(r.Result.Outcome) + " "
		}
		message := r.Result.Message
		if message == "" && r.Result.SkipReason != "" {
			message = r.Result.SkipReason
		}
		sb.WriteString(fmt.Sprintf("| %s%s | `%s` | %s | %s%s | %.0fms | %s |\n",
			lvlEmoji,
			string(r.Check.Level),
			r.Check.Name,
			r.Check.Category,
			outcEmoji,
			string(r.Result.Outcome),
			r.Result.DurationMs,
			truncateString(message, 60),
		))
	}
	sb.WriteString("\n")

	// Render evidence if enabled
	if mw.config.IncludeEvidence {
		mw.renderEvidence(sb, results)
	}
}

func (mw *MarkdownWriter) renderEvidence(sb *strings.Builder, results []*events.ResultEvent) {
	// Only render evidence for failing checks
	hasEvidence := false
	for _, r := range results {
		if outcomeFails(r.Result.Outcome) && r.Evidence != nil {
			hasEvidence = true
			break
		}
	}

	if !hasEvidence {
		return
	}

	sb.WriteString("### Evidence\n\n")

	for _, r := range results {
		if !outcomeFails(r.Result.Outcome) || r.Evidence == nil {
			continue
		}

		if mw.supportsCollapsible() {
			mw.renderCollapsibleDetails(sb, fmt.Sprintf("<code>%s</code> - %s", r.Check.Name, r.Check.Category), func(content *strings.Builder) {
				mw.renderEvidenceContent(content, r)
			})
		} else {
			sb.WriteString(fmt.Sprintf("#### %s - %s\n\n", r.Check.Name, r.Check.Category))
			mw.renderEvidenceContent(sb, r)
		}
	}
}

// renderCollapsibleDetails renders a GitHub-flavored collapsible details block.
func (mw *MarkdownWriter) renderCollapsibleDetails(sb *strings.Builder, summary string, contentFn func(*strings.Builder)) {
	sb.WriteString("<details>\n")
	sb.WriteString(fmt.Sprintf("<summary>%s</summary>\n\n", summary))
	contentFn(sb)
	sb.WriteString("</details>\n\n")
}

// renderEvidenceContent renders the evidence content for a single result.
func (mw *MarkdownWriter) renderEvidenceContent(sb *strings.Builder, r *events.ResultEvent) {
	if r.Evidence.Method != "" {
		sb.WriteString(fmt.Sprintf("**Method:** `%s`\n\n", r.Evidence.Method))
	}

	if r.Evidence.Request != "" {
		sb.WriteString("**Request:**\n")
		sb.WriteString("```json\n")
		sb.WriteString(mw.truncateExchange(r.Evidence.Request))
		sb.WriteString("\n```\n\n")
	}

	if r.Evidence.Response != "" {
		sb.WriteString("**Response:**\n")
		sb.WriteString("```json\n")
		sb.WriteString(mw.truncateExchange(r.Evidence.Response))
		sb.WriteString("\n```\n\n")
	}

	if r.Evidence.Detail != "" {
		sb.WriteString(fmt.Sprintf("**Detail:** %s\n\n", r.Evidence.Detail))
	}
}

func (mw *MarkdownWriter) truncateExchange(s string) string {
	if len(s) > mw.config.MaxExchangeLen {
		return s[:mw.config.MaxExchangeLen] + "\n\n.... Truncated ...."
	}
	return s
}

func (mw *MarkdownWriter) sortResults() []*events.ResultEvent {
	results := make([]*events.ResultEvent, len(mw.results))
	copy(results, mw.results)

	switch mw.config.SortBy {
	case "level":
		sort.SliceStable(results, func(i, j int) bool {
			// Failures first
			if outcomeFails(results[i].Result.Outcome) != outcomeFails(results[j].Result.Outcome) {
				return outcomeFails(results[i].Result.Outcome)
			}
			// Then by level (stronger requirement first)
			return levelPriority(results[i].Check.Level) > levelPriority(results[j].Check.Level)
		})
	case "category":
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Check.Category != results[j].Check.Category {
				return results[i].Check.Category < results[j].Check.Category
			}
			return levelPriority(results[i].Check.Level) > levelPriority(results[j].Check.Level)
		})
	case "name":
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Check.Name < results[j].Check.Name
		})
	}

	return results
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
