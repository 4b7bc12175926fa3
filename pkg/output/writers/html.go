// Package writers provides output writers for various formats.
package writers

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*HTMLWriter)(nil)

// HTMLConfig configures the HTML report writer.
type HTMLConfig struct {
	// Title is the report title (default: "MCP Conformance Report")
	Title string

	// Theme sets the default theme: "dark", "light", or "auto" (default: "auto")
	Theme string

	// IncludeEvidence includes request/response exchanges in the report (default: true)
	IncludeEvidence bool

	// IncludeJSON includes a JSON toggle view for each check (default: true)
	IncludeJSON bool

	// CompanyLogo is the path to a company logo (optional)
	CompanyLogo string

	// CompanyName is the company name for branding (optional)
	CompanyName string

	// ShowExecutiveSummary shows the executive summary section at the top (default: true)
	ShowExecutiveSummary bool

	// ShowOutcomeChart shows the inline SVG pie chart for the outcome distribution (default: true)
	ShowOutcomeChart bool

	// ShowLevelMatrix shows the requirement level by outcome cross-tabulation (default: true)
	ShowLevelMatrix bool

	// MaxExchangeLength is the maximum length in runes for request/response
	// previews before truncation (default: 4096)
	MaxExchangeLength int
}

// HTMLWriter writes events as a styled HTML report.
// It buffers all events in memory and renders the complete HTML document on Close.
// The writer is safe for concurrent use.
type HTMLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  HTMLConfig
	results []*events.ResultEvent
	summary *events.SummaryEvent
}

// NewHTMLWriter creates a new HTML report writer.
// The writer buffers all events and writes a complete HTML report on Close.
func NewHTMLWriter(w io.Writer, config HTMLConfig) *HTMLWriter {
	if config.Title == "" {
		config.Title = "MCP Conformance Report"
	}
	if config.Theme == "" {
		config.Theme = "auto"
	}
	if config.MaxExchangeLength <= 0 {
		config.MaxExchangeLength = 4096
	}
	// If no feature toggles are explicitly set, enable all by default
	if !config.IncludeEvidence && !config.IncludeJSON && !config.ShowExecutiveSummary &&
		!config.ShowOutcomeChart && !config.ShowLevelMatrix {
		config.IncludeEvidence = true
		config.IncludeJSON = true
		config.ShowExecutiveSummary = true
		config.ShowOutcomeChart = true
		config.ShowLevelMatrix = true
	}
	return &HTMLWriter{
		w:       w,
		config:  config,
		results: make([]*events.ResultEvent, 0),
	}
}

// Write buffers an event for later HTML output.
func (hw *HTMLWriter) Write(event events.Event) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	switch e := event.(type) {
	case *events.ResultEvent:
		hw.results = append(hw.results, e)
	case *events.SummaryEvent:
		hw.summary = e
	}
	return nil
}

// Flush is a no-op for HTML writer.
// All events are written as a single HTML document on Close.
func (hw *HTMLWriter) Flush() error {
	return nil
}

// Close renders and writes the complete HTML report.
func (hw *HTMLWriter) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	data := hw.prepareTemplateData()
	return hw.renderHTML(data)
}

// SupportsEvent returns true for result and summary events.
func (hw *HTMLWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeResult, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// templateData holds all data needed for HTML rendering.
type templateData struct {
	Config           HTMLConfig
	GeneratedAt      string
	Summary          *summaryData
	LevelFailures    map[string]int
	CategoryCoverage []categoryCoverage
	Checks           []checkData
	TotalChecks      int
	TotalPassed      int
	TotalFailed      int
	TotalSkipped     int
	TotalErrors      int
	TotalTimeouts    int
	Score            float64
	Tier             string
	Endpoint         string
	ServerName       string
	Revision         string
	SpecURL          string
	DurationSeconds  float64
	// Executive summary data
	TopRecommendations []string
	OutcomeChartSVG    string
	LevelMatrixHTML    string
	// Summary-derived sections
	Insights          []htmlInsight
	PassingCategories []passingCategory
	Remediations      []remediationEntry
}

type summaryData struct {
	Checks   int
	Passed   int
	Failed   int
	Skipped  int
	Errors   int
	Timeouts int
	Score    float64
	Tier     string
}

type categoryCoverage struct {
	Name     string
	Total    int
	Failures int
	Status   string // "pass", "fail", "none"
}

type checkData struct {
	Name         string
	Category     string
	Level        string
	LevelClass   string
	Outcome      string
	OutcomeClass string
	Revision     string
	DurationMs   float64
	Message      string
	SkipReason   string
	Tags         []string
	JSONData     string
	HasEvidence  bool
	Method       string
	RequestJSON  string
	ResponseJSON string
	Detail       string
	Timestamp    string
}

type htmlInsight struct {
	Icon  string
	Title string
	Body  string
}

type passingCategory struct {
	Name   string
	Total  int
	Passed int
}

type remediationEntry struct {
	Category  string
	Failures  int
	Guidance  string
	Reference string
}

// specURLFor returns the protocol specification page for a revision.
func specURLFor(revision string) string {
	return "https://modelcontextprotocol.io/specification/" + revision
}

// truncateResponse truncates a string that exceeds maxRunes runes.
// Truncation is rune-aware so multibyte characters are never split.
func truncateResponse(response string, maxRunes int) string {
	runes := []rune(response)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "\n.... Truncated ...."
	}
	return response
}

// generateOutcomeChartSVG creates an inline SVG pie chart for the outcome distribution
func generateOutcomeChartSVG(counts map[string]int) string {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return ""
	}

	// Define colors for each outcome
	colors := map[string]string{
		"passed":   "#198754",
		"failed":   "#dc3545",
		"timedOut": "#fd7e14",
		"errored":  "#6c757d",
		"skipped":  "#0dcaf0",
	}
	labels := map[string]string{
		"passed":   "Passed",
		"failed":   "Failed",
		"timedOut": "Timed Out",
		"errored":  "Errored",
		"skipped":  "Skipped",
	}

	// Calculate pie chart segments
	type segment struct {
		label   string
		count   int
		color   string
		percent float64
	}

	var segments []segment
	for _, out := range []string{"passed", "failed", "timedOut", "errored", "skipped"} {
		if c := counts[out]; c > 0 {
			segments = append(segments, segment{
				label:   labels[out],
				count:   c,
				color:   colors[out],
				percent: float64(c) / float64(total) * 100,
			})
		}
	}

	if len(segments) == 0 {
		return ""
	}

	// Build SVG
	var sb strings.Builder
	sb.WriteString(`<svg viewBox="0 0 400 200" xmlns="http://www.w3.org/2000/svg" class="outcome-chart">`)

	// Pie chart center and radius
	cx, cy, r := 80.0, 100.0, 70.0
	startAngle := -90.0 // Start from top

	for _, seg := range segments {
		if seg.percent == 100 {
			// Full circle
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`,
				cx, cy, r, seg.color))
		} else {
			// Calculate arc
			endAngle := startAngle + (seg.percent / 100 * 360)
			largeArc := 0
			if seg.percent > 50 {
				largeArc = 1
			}

			// Convert angles to radians
			startRad := startAngle * 3.14159265 / 180
			endRad := endAngle * 3.14159265 / 180

			// Calculate points
			x1 := cx + r*cosApprox(startRad)
			y1 := cy + r*sinApprox(startRad)
			x2 := cx + r*cosApprox(endRad)
			y2 := cy + r*sinApprox(endRad)

			// Create path
			sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f L%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f Z" fill="%s"/>`,
				cx, cy, x1, y1, r, r, largeArc, x2, y2, seg.color))

			startAngle = endAngle
		}
	}

	// Legend
	legendX := 180.0
	legendY := 30.0
	for _, seg := range segments {
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="16" height="16" fill="%s" rx="2"/>`,
			legendX, legendY, seg.color))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" class="legend-text">%s: %d (%.1f%%)</text>`,
			legendX+22, legendY+12, seg.label, seg.count, seg.percent))
		legendY += 28
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

// Simple trig approximations for SVG generation (avoid math import for inlining)
func sinApprox(x float64) float64 {
	// Taylor series approximation
	x = normalizeAngle(x)
	x3 := x * x * x
	x5 := x3 * x * x
	return x - x3/6 + x5/120
}

func cosApprox(x float64) float64 {
	// Taylor series approximation
	x = normalizeAngle(x)
	x2 := x * x
	x4 := x2 * x2
	return 1 - x2/2 + x4/24
}

func normalizeAngle(x float64) float64 {
	pi := 3.14159265
	for x > pi {
		x -= 2 * pi
	}
	for x < -pi {
		x += 2 * pi
	}
	return x
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// generateLevelMatrixHTML creates a requirement level by outcome matrix table
func generateLevelMatrixHTML(results []*events.ResultEvent) string {
	if len(results) == 0 {
		return ""
	}

	// Count by level and outcome
	levels := []string{"MUST", "SHOULD", "MAY"}
	outcomes := []string{"passed", "failed", "timedOut", "errored", "skipped"}
	matrix := make(map[string]map[string]int)
	for _, lvl := range levels {
		matrix[lvl] = map[string]int{}
	}

	levelTotals := make(map[string]int)
	outcomeTotals := make(map[string]int)
	grandTotal := 0

	for _, r := range results {
		lvl := strings.ToUpper(string(r.Check.Level))
		out := string(r.Result.Outcome)
		if _, ok := matrix[lvl]; ok {
			matrix[lvl][out]++
			levelTotals[lvl]++
		}
		outcomeTotals[out]++
		grandTotal++
	}

	var sb strings.Builder
	sb.WriteString(`<table class="level-matrix-table">`)
	sb.WriteString(`<thead><tr><th>Level</th><th class="passed-col">Passed</th><th class="failed-col">Failed</th><th class="timeout-col">Timed Out</th><th class="error-col">Errored</th><th class="skipped-col">Skipped</th><th>Total</th></tr></thead>`)
	sb.WriteString(`<tbody>`)

	for _, lvl := range levels {
		sb.WriteString(fmt.Sprintf(`<tr class="level-%s-row">`, strings.ToLower(lvl)))
		sb.WriteString(fmt.Sprintf(`<td class="level-label">%s</td>`, lvl))
		for _, out := range outcomes {
			count := matrix[lvl][out]
			cellClass := ""
			if count > 0 && out != "passed" && out != "skipped" {
				cellClass = ` class="has-failures"`
			}
			sb.WriteString(fmt.Sprintf(`<td%s>%d</td>`, cellClass, count))
		}
		sb.WriteString(fmt.Sprintf(`<td class="row-total">%d</td>`, levelTotals[lvl]))
		sb.WriteString(`</tr>`)
	}

	// Totals row
	sb.WriteString(`<tr class="totals-row"><td><strong>Total</strong></td>`)
	for _, out := range outcomes {
		sb.WriteString(fmt.Sprintf(`<td><strong>%d</strong></td>`, outcomeTotals[out]))
	}
	sb.WriteString(fmt.Sprintf(`<td class="grand-total"><strong>%d</strong></td>`, grandTotal))
	sb.WriteString(`</tr></tbody></table>`)

	return sb.String()
}

// generateTopRecommendations creates actionable recommendations based on failing checks
func generateTopRecommendations(results []*events.ResultEvent, levelFailures map[string]int) []string {
	var recommendations []string

	// MUST failures recommendation
	if levelFailures["must"] > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("🚨 Fix %d failing MUST requirement(s) first - conforming clients may refuse to interoperate until these pass",
				levelFailures["must"]))
	}

	// SHOULD failures recommendation
	if levelFailures["should"] > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("⚠️ Review %d failing SHOULD requirement(s) - align the server with the recommended behavior",
				levelFailures["should"]))
	}

	// Category-specific recommendations
	categoryFailures := make(map[string]int)
	for _, r := range results {
		if outcomeFails(r.Result.Outcome) {
			categoryFailures[r.Check.Category]++
		}
	}

	// Find worst category
	var worstCat string
	var worstCount int
	for cat, count := range categoryFailures {
		if count > worstCount {
			worstCat = cat
			worstCount = count
		}
	}

	if worstCat != "" && len(recommendations) < 3 {
		recommendations = append(recommendations,
			fmt.Sprintf("📋 Start with the %s category - %d check(s) failed there",
				worstCat, worstCount))
	}

	// General recommendation if space allows
	if len(recommendations) < 3 {
		totalFailures := 0
		for _, c := range levelFailures {
			totalFailures += c
		}
		if totalFailures == 0 {
			recommendations = append(recommendations, "✅ Clean run - every executed check passed")
		}
	}

	// Limit to 3 recommendations
	if len(recommendations) > 3 {
		recommendations = recommendations[:3]
	}

	return recommendations
}

// buildHTMLInsights derives headline observations from the run summary.
// Returns nil when no summary event was seen.
func buildHTMLInsights(results []*events.ResultEvent, summary *events.SummaryEvent) []htmlInsight {
	if summary == nil {
		return nil
	}

	var insights []htmlInsight

	if summary.Target.ServerName != "" {
		body := summary.Target.ServerName
		if summary.Target.Transport != "" {
			body = fmt.Sprintf("%s over %s transport", summary.Target.ServerName, summary.Target.Transport)
		}
		insights = append(insights, htmlInsight{
			Icon:  "🔌",
			Title: "Server Identity",
			Body:  body,
		})
	}

	if summary.Compliance.Tier != "" {
		insights = append(insights, htmlInsight{
			Icon:  "🎯",
			Title: "Compliance Posture",
			Body:  fmt.Sprintf("%s at a weighted score of %.1f%%", summary.Compliance.Tier, summary.Compliance.Score),
		})
	}

	if summary.Totals.Timeouts > 0 {
		insights = append(insights, htmlInsight{
			Icon:  "⏱️",
			Title: "Timeout Pressure",
			Body:  fmt.Sprintf("%d check(s) timed out; the server may be slow to answer or silently dropping requests", summary.Totals.Timeouts),
		})
	}

	if summary.Timing.DurationSec > 0 {
		rate := float64(summary.Totals.Checks) / summary.Timing.DurationSec
		insights = append(insights, htmlInsight{
			Icon:  "⚡",
			Title: "Run Performance",
			Body:  fmt.Sprintf("%d checks in %.1fs (%.1f checks/sec)", summary.Totals.Checks, summary.Timing.DurationSec, rate),
		})
	}

	// Slowest check from the buffered results
	var slowest *events.ResultEvent
	for _, r := range results {
		if slowest == nil || r.Result.DurationMs > slowest.Result.DurationMs {
			slowest = r
		}
	}
	if slowest != nil && slowest.Result.DurationMs > 0 {
		insights = append(insights, htmlInsight{
			Icon:  "🐢",
			Title: "Slowest Check",
			Body:  fmt.Sprintf("%s took %.0fms", slowest.Check.Name, slowest.Result.DurationMs),
		})
	}

	return insights
}

func (hw *HTMLWriter) prepareTemplateData() *templateData {
	data := &templateData{
		Config:        hw.config,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05 MST"),
		LevelFailures: make(map[string]int),
		Checks:        make([]checkData, 0, len(hw.results)),
	}

	// Initialize level failure counts
	for _, lvl := range []string{"must", "should", "may"} {
		data.LevelFailures[lvl] = 0
	}

	catMap := make(map[string]*categoryCoverage)
	outcomeCounts := make(map[string]int)
	inputs := make([]scoring.Input, 0, len(hw.results))

	// Process results
	for _, r := range hw.results {
		out := r.Result.Outcome
		outcomeCounts[string(out)]++
		switch out {
		case events.OutcomePassed:
			data.TotalPassed++
		case events.OutcomeFailed:
			data.TotalFailed++
		case events.OutcomeSkipped:
			data.TotalSkipped++
		case events.OutcomeTimedOut:
			data.TotalTimeouts++
		case events.OutcomeErrored:
			data.TotalErrors++
		}

		// Count failures by level
		if outcomeFails(out) {
			switch r.Check.Level {
			case events.LevelMust:
				data.LevelFailures["must"]++
			case events.LevelShould:
				data.LevelFailures["should"]++
			case events.LevelMay:
				data.LevelFailures["may"]++
			}
		}
		inputs = append(inputs, scoring.Input{Level: r.Check.Level, Outcome: out})

		// Track category coverage
		cat, ok := catMap[r.Check.Category]
		if !ok {
			cat = &categoryCoverage{Name: r.Check.Category, Status: "none"}
			catMap[r.Check.Category] = cat
		}
		cat.Total++
		if outcomeFails(out) {
			cat.Failures++
			cat.Status = "fail"
		} else if cat.Status == "none" && out == events.OutcomePassed {
			cat.Status = "pass"
		}

		// Build check data
		check := checkData{
			Name:         r.Check.Name,
			Category:     r.Check.Category,
			Level:        string(r.Check.Level),
			LevelClass:   levelToClass(r.Check.Level),
			Outcome:      string(out),
			OutcomeClass: outcomeToClass(out),
			Revision:     r.Check.Revision,
			DurationMs:   r.Result.DurationMs,
			Message:      r.Result.Message,
			SkipReason:   r.Result.SkipReason,
			Tags:         r.Check.Tags,
			Timestamp:    r.Time.Format("2006-01-02 15:04:05"),
		}

		if r.Evidence != nil && hw.config.IncludeEvidence {
			check.Method = r.Evidence.Method
			check.RequestJSON = truncateResponse(r.Evidence.Request, hw.config.MaxExchangeLength)
			check.ResponseJSON = truncateResponse(r.Evidence.Response, hw.config.MaxExchangeLength)
			check.Detail = r.Evidence.Detail
			check.HasEvidence = check.Method != "" || check.RequestJSON != "" ||
				check.ResponseJSON != "" || check.Detail != ""
		}

		if hw.config.IncludeJSON {
			jsonBytes, _ := jsonutil.MarshalIndent(r, "", "  ")
			check.JSONData = string(jsonBytes)
		}

		data.Checks = append(data.Checks, check)
	}

	data.TotalChecks = len(hw.results)

	// Score the buffered results; the summary event overrides this below
	comp := scoring.Calculate(inputs, "")
	data.Score = comp.Score
	data.Tier = comp.Tier

	// Build category coverage list sorted by name
	data.CategoryCoverage = make([]categoryCoverage, 0, len(catMap))
	for _, cat := range catMap {
		data.CategoryCoverage = append(data.CategoryCoverage, *cat)
	}
	sort.Slice(data.CategoryCoverage, func(i, j int) bool {
		return data.CategoryCoverage[i].Name < data.CategoryCoverage[j].Name
	})

	// Remediation guidance for failing categories
	for _, cat := range data.CategoryCoverage {
		if cat.Failures > 0 {
			info := categoryGuidanceFor(cat.Name)
			data.Remediations = append(data.Remediations, remediationEntry{
				Category:  info.Title,
				Failures:  cat.Failures,
				Guidance:  info.Guidance,
				Reference: info.ReferenceURL,
			})
		}
	}

	// Generate executive summary components
	if hw.config.ShowExecutiveSummary {
		data.TopRecommendations = generateTopRecommendations(hw.results, data.LevelFailures)
	}

	// Generate outcome chart SVG
	if hw.config.ShowOutcomeChart {
		data.OutcomeChartSVG = generateOutcomeChartSVG(outcomeCounts)
	}

	// Generate level matrix HTML
	if hw.config.ShowLevelMatrix {
		data.LevelMatrixHTML = generateLevelMatrixHTML(hw.results)
	}

	// Use summary if available
	if hw.summary != nil {
		data.Endpoint = hw.summary.Target.Endpoint
		data.ServerName = hw.summary.Target.ServerName
		data.Revision = hw.summary.Target.Revision
		data.DurationSeconds = hw.summary.Timing.DurationSec
		data.Score = hw.summary.Compliance.Score
		data.Tier = hw.summary.Compliance.Tier

		data.Summary = &summaryData{
			Checks:   hw.summary.Totals.Checks,
			Passed:   hw.summary.Totals.Passed,
			Failed:   hw.summary.Totals.Failed,
			Skipped:  hw.summary.Totals.Skipped,
			Errors:   hw.summary.Totals.Errors,
			Timeouts: hw.summary.Totals.Timeouts,
			Score:    hw.summary.Compliance.Score,
			Tier:     hw.summary.Compliance.Tier,
		}
		data.TotalChecks = hw.summary.Totals.Checks
		data.TotalPassed = hw.summary.Totals.Passed
		data.TotalFailed = hw.summary.Totals.Failed
		data.TotalSkipped = hw.summary.Totals.Skipped
		data.TotalErrors = hw.summary.Totals.Errors
		data.TotalTimeouts = hw.summary.Totals.Timeouts

		// Categories where every counted check passed
		for name, stats := range hw.summary.Breakdown.ByCategory {
			if stats.Total > 0 && stats.Failed == 0 && stats.Passed > 0 {
				data.PassingCategories = append(data.PassingCategories, passingCategory{
					Name:   name,
					Total:  stats.Total,
					Passed: stats.Passed,
				})
			}
		}
		sort.Slice(data.PassingCategories, func(i, j int) bool {
			return data.PassingCategories[i].Name < data.PassingCategories[j].Name
		})
	}

	if data.Revision != "" {
		data.SpecURL = specURLFor(data.Revision)
	}

	data.Insights = buildHTMLInsights(hw.results, hw.summary)

	// Sort checks: failures first, then by requirement level
	sort.SliceStable(data.Checks, func(i, j int) bool {
		fi := outcomeFails(events.Outcome(data.Checks[i].Outcome))
		fj := outcomeFails(events.Outcome(data.Checks[j].Outcome))
		if fi != fj {
			return fi
		}
		pi := levelPriority(events.Level(data.Checks[i].Level))
		pj := levelPriority(events.Level(data.Checks[j].Level))
		if pi != pj {
			return pi > pj
		}
		return data.Checks[i].Name < data.Checks[j].Name
	})

	return data
}

func levelToClass(l events.Level) string {
	switch l {
	case events.LevelMust:
		return "level-must"
	case events.LevelShould:
		return "level-should"
	default:
		return "level-may"
	}
}

func outcomeToClass(o events.Outcome) string {
	switch o {
	case events.OutcomePassed:
		return "outcome-passed"
	case events.OutcomeFailed:
		return "outcome-failed"
	case events.OutcomeSkipped:
		return "outcome-skipped"
	case events.OutcomeTimedOut:
		return "outcome-timeout"
	default:
		return "outcome-error"
	}
}

func (hw *HTMLWriter) renderHTML(data *templateData) error {
	funcMap := template.FuncMap{
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	if err := tmpl.Execute(hw.w, data); err != nil {
		return fmt.Errorf("failed to execute HTML template: %w", err)
	}

	if closer, ok := hw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// htmlTemplate is the embedded HTML template for the report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en" data-theme="{{.Config.Theme}}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Config.Title}}</title>
    <style>
        /* CSS Variables for theming */
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8f9fa;
            --bg-card: #ffffff;
            --text-primary: #212529;
            --text-secondary: #6c757d;
            --border-color: #dee2e6;
            --shadow: 0 2px 8px rgba(0,0,0,0.1);
            --accent: #0d6efd;
            --level-must: #dc3545;
            --level-should: #fd7e14;
            --level-may: #0dcaf0;
            --outcome-passed: #198754;
            --outcome-failed: #dc3545;
            --outcome-skipped: #0dcaf0;
            --outcome-timeout: #fd7e14;
            --outcome-error: #6c757d;
            --coverage-pass: #198754;
            --coverage-fail: #dc3545;
            --coverage-none: #6c757d;

            /* Terminal aesthetic */
            --font-mono: 'Geist Mono', 'JetBrains Mono', 'Fira Code', 'Monaco', 'Consolas', monospace;
            --terminal-green: #33ff00;
            --header-gradient: linear-gradient(135deg, #1a365d 0%, #0f2942 100%);
        }

        [data-theme="dark"] {
            --bg-primary: #1a1a2e;
            --bg-secondary: #16213e;
            --bg-card: #0f3460;
            --text-primary: #e8e8e8;
            --text-secondary: #a0a0a0;
            --border-color: #3a3a5c;
            --shadow: 0 2px 8px rgba(0,0,0,0.3);
        }

        /* Reset and base styles */
        *, *::before, *::after {
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            margin: 0;
            padding: 0;
            line-height: 1.6;
        }

        /* Header */
        .header {
            background: var(--bg-secondary);
            padding: 1.5rem 2rem;
            border-bottom: 1px solid var(--border-color);
            display: flex;
            justify-content: space-between;
            align-items: center;
        }

        .header-left {
            display: flex;
            align-items: center;
            gap: 1rem;
        }

        .logo {
            max-height: 40px;
        }

        .header-title h1 {
            margin: 0;
            font-size: 1.5rem;
        }

        .header-title .company-name {
            color: var(--text-secondary);
            font-size: 0.9rem;
        }

        .header-actions {
            display: flex;
            gap: 0.5rem;
        }

        /* Buttons */
        .btn {
            padding: 0.5rem 1rem;
            border: 1px solid var(--border-color);
            border-radius: 6px;
            background: var(--bg-card);
            color: var(--text-primary);
            cursor: pointer;
            font-size: 0.875rem;
            transition: all 0.2s;
        }

        .btn:hover {
            background: var(--bg-secondary);
        }

        .btn-primary {
            background: var(--accent);
            color: white;
            border-color: var(--accent);
        }

        /* Container */
        .container {
            max-width: 1400px;
            margin: 0 auto;
            padding: 2rem;
        }

        /* Executive Summary */
        .summary-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }

        .summary-card {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.5rem;
            box-shadow: var(--shadow);
            border: 1px solid var(--border-color);
            border-left: 4px solid var(--accent);
            text-align: center;
            position: relative;
            transition: transform 0.2s, box-shadow 0.2s;
        }

        .summary-card:hover {
            transform: translateY(-2px);
            box-shadow: 0 4px 12px rgba(0,0,0,0.15);
        }

        .summary-card.passed-card { border-left-color: var(--outcome-passed); }
        .summary-card.failed-card { border-left-color: var(--outcome-failed); }
        .summary-card.error-card { border-left-color: var(--outcome-error); }
        .summary-card.tier-card { border-left-color: var(--accent); }

        .summary-card .value {
            font-size: 2.5rem;
            font-weight: 700;
            line-height: 1;
        }

        .summary-card .label {
            color: var(--text-secondary);
            font-size: 0.875rem;
            margin-top: 0.5rem;
        }

        .tier-card .value {
            font-size: 1.5rem;
            padding-top: 0.75rem;
        }

        /* Level badges */
        .level-cards {
            display: flex;
            gap: 0.5rem;
            flex-wrap: wrap;
            margin-bottom: 2rem;
        }

        .level-badge {
            padding: 0.5rem 1rem;
            border-radius: 20px;
            font-size: 0.875rem;
            font-weight: 600;
            display: flex;
            align-items: center;
            gap: 0.5rem;
        }

        .level-must { background: var(--level-must); color: white; }
        .level-should { background: var(--level-should); color: white; }
        .level-may { background: var(--level-may); color: #000; }

        /* Category coverage grid */
        .category-section {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.5rem;
            box-shadow: var(--shadow);
            border: 1px solid var(--border-color);
            margin-bottom: 2rem;
        }

        .category-section h2 {
            margin-top: 0;
            margin-bottom: 1rem;
        }

        .category-grid {
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(280px, 1fr));
            gap: 0.75rem;
        }

        .category-item {
            display: flex;
            align-items: center;
            gap: 0.75rem;
            padding: 0.75rem;
            border-radius: 8px;
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
        }

        .category-status {
            width: 20px;
            height: 20px;
            display: flex;
            align-items: center;
            justify-content: center;
            font-size: 1rem;
            font-weight: bold;
            flex-shrink: 0;
        }

        .category-status.pass::before { content: '✔'; color: var(--coverage-pass); }
        .category-status.fail::before { content: '✖'; color: var(--coverage-fail); }
        .category-status.none::before { content: '○'; color: var(--coverage-none); }

        .category-info {
            flex: 1;
            min-width: 0;
        }

        .category-code {
            font-weight: 600;
            font-size: 0.875rem;
        }

        .category-stats {
            font-size: 0.75rem;
            color: var(--text-secondary);
        }

        /* Checks */
        .checks-section {
            margin-bottom: 2rem;
        }

        .check {
            background: var(--bg-card);
            border-radius: 12px;
            margin-bottom: 1rem;
            box-shadow: var(--shadow);
            border: 1px solid var(--border-color);
            overflow: hidden;
        }

        .check-header {
            padding: 1rem 1.5rem;
            display: flex;
            align-items: center;
            gap: 1rem;
            cursor: pointer;
            user-select: none;
            transition: background 0.2s;
        }

        .check-header:hover {
            background: var(--bg-secondary);
        }

        .check-toggle {
            font-size: 1.25rem;
            color: var(--text-secondary);
            transition: transform 0.2s;
        }

        .check.expanded .check-toggle {
            transform: rotate(90deg);
        }

        .check-title {
            flex: 1;
            font-weight: 600;
        }

        .check-meta {
            display: flex;
            gap: 0.5rem;
            align-items: center;
        }

        .badge {
            padding: 0.25rem 0.5rem;
            border-radius: 4px;
            font-size: 0.75rem;
            font-weight: 600;
        }

        .outcome-passed { background: var(--outcome-passed); color: white; }
        .outcome-failed { background: var(--outcome-failed); color: white; }
        .outcome-skipped { background: var(--outcome-skipped); color: #000; }
        .outcome-timeout { background: var(--outcome-timeout); color: white; }
        .outcome-error { background: var(--outcome-error); color: white; }

        .check-body {
            display: none;
            padding: 1rem 1.5rem;
            border-top: 1px solid var(--border-color);
        }

        .check.expanded .check-body {
            display: block;
        }

        .check-details {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 1rem;
        }

        .detail-item {
            background: var(--bg-secondary);
            padding: 0.75rem;
            border-radius: 6px;
        }

        .detail-label {
            color: var(--text-secondary);
            font-size: 0.75rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }

        .detail-value {
            font-weight: 500;
            word-break: break-all;
        }

        /* Evidence section */
        .evidence-section {
            margin-top: 1rem;
            padding-top: 1rem;
            border-top: 1px solid var(--border-color);
        }

        .evidence-section h4 {
            margin: 0 0 0.5rem 0;
            font-size: 0.875rem;
        }

        .code-block {
            background: var(--bg-secondary);
            border-radius: 6px;
            padding: 1rem;
            overflow-x: auto;
            font-family: 'Monaco', 'Consolas', monospace;
            font-size: 0.8rem;
            white-space: pre-wrap;
            word-break: break-all;
        }

        /* JSON Toggle */
        .json-toggle {
            margin-top: 1rem;
        }

        .json-toggle-btn {
            background: none;
            border: none;
            color: var(--accent);
            cursor: pointer;
            font-size: 0.875rem;
            padding: 0;
            text-decoration: underline;
        }

        .json-content {
            display: none;
            margin-top: 0.5rem;
        }

        .json-content.visible {
            display: block;
        }

        /* Footer */
        .footer {
            text-align: center;
            padding: 2rem;
            color: var(--text-secondary);
            font-size: 0.875rem;
        }

        /* Print styles */
        @media print {
            .header-actions,
            .theme-toggle,
            .json-toggle,
            .btn,
            .no-print {
                display: none !important;
            }

            body {
                background: white;
                color: black;
                font-size: 12pt;
            }

            .check {
                page-break-inside: avoid;
            }

            .check-body,
            .collapsible-content {
                display: block !important;
            }

            .page-break {
                page-break-before: always;
            }

            .container {
                max-width: 100%;
                padding: 0;
            }

            .summary-card,
            .category-section,
            .check {
                box-shadow: none;
                border: 1px solid #ccc;
            }
        }

        @page {
            margin: 1cm;
        }

        /* Terminal Banner */
        .terminal-banner {
            background: #0a0a0a;
            padding: 1rem;
            overflow: hidden;
        }

        .ascii-art {
            font-family: var(--font-mono);
            font-size: 0.5rem;
            color: var(--terminal-green);
            text-align: center;
            margin: 0;
            line-height: 1.2;
        }

        [data-theme="light"] .terminal-banner {
            background: var(--bg-secondary);
        }

        [data-theme="light"] .ascii-art {
            color: #087f5b;
        }

        @media (max-width: 768px) {
            .terminal-banner { display: none; }
        }

        @media print {
            .terminal-banner { display: none !important; }
        }

        /* Report Metadata Bar */
        .report-meta {
            display: flex;
            flex-wrap: wrap;
            gap: 1.5rem;
            padding: 1rem 2rem;
            background: var(--bg-secondary);
            border-bottom: 1px solid var(--border-color);
            font-size: 0.875rem;
        }

        .meta-item {
            display: flex;
            gap: 0.5rem;
        }

        .meta-label {
            color: var(--text-secondary);
            font-weight: 500;
        }

        /* Copy to Clipboard Button */
        .copy-btn {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 4px;
            padding: 0.25rem 0.5rem;
            font-size: 0.75rem;
            cursor: pointer;
            color: var(--text-secondary);
            transition: all 0.2s;
            margin-left: 0.5rem;
        }

        .copy-btn:hover {
            background: var(--accent);
            color: white;
        }

        .copy-btn.copied {
            background: var(--outcome-passed);
            color: white;
        }

        /* Checks Toolbar - Filter/Search */
        .checks-toolbar {
            display: flex;
            gap: 1rem;
            margin-bottom: 1rem;
            flex-wrap: wrap;
        }

        .filter-input {
            flex: 1;
            min-width: 200px;
            padding: 0.5rem 1rem;
            border: 1px solid var(--border-color);
            border-radius: 6px;
            background: var(--bg-card);
            color: var(--text-primary);
            font-size: 0.875rem;
        }

        .filter-select {
            padding: 0.5rem 1rem;
            border: 1px solid var(--border-color);
            border-radius: 6px;
            background: var(--bg-card);
            color: var(--text-primary);
            font-size: 0.875rem;
        }

        /* Outcome Chart SVG */
        .outcome-chart {
            max-width: 400px;
            height: auto;
        }

        .outcome-chart .legend-text {
            font-size: 13px;
            fill: var(--text-primary);
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
        }

        /* Level Matrix Table */
        .level-matrix-table {
            width: 100%;
            border-collapse: collapse;
            margin: 1rem 0;
            font-size: 0.875rem;
        }

        .level-matrix-table th,
        .level-matrix-table td {
            padding: 0.5rem 0.75rem;
            border: 1px solid var(--border-color);
            text-align: center;
        }

        .level-matrix-table th {
            background: var(--bg-secondary);
            font-weight: 600;
        }

        .level-matrix-table .level-label {
            text-align: left;
            font-weight: 500;
        }

        .level-matrix-table .has-failures {
            background: rgba(220, 53, 69, 0.2);
            color: var(--level-must);
            font-weight: 600;
        }

        .level-matrix-table .passed-col { color: var(--outcome-passed); }
        .level-matrix-table .failed-col { color: var(--outcome-failed); }
        .level-matrix-table .timeout-col { color: var(--outcome-timeout); }
        .level-matrix-table .error-col { color: var(--outcome-error); }

        .level-matrix-table .totals-row {
            background: var(--bg-secondary);
        }

        .level-matrix-table .grand-total {
            font-weight: 700;
        }

        .level-matrix-table .level-must-row .level-label { color: var(--level-must); }
        .level-matrix-table .level-should-row .level-label { color: var(--level-should); }
        .level-matrix-table .level-may-row .level-label { color: var(--level-may); }

        /* Executive Summary Box */
        .executive-summary {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 1.5rem;
            box-shadow: var(--shadow);
            border: 1px solid var(--border-color);
            margin-bottom: 2rem;
        }

        .executive-summary h2 {
            margin-top: 0;
            margin-bottom: 1rem;
        }

        .recommendations-list {
            list-style: none;
            padding: 0;
            margin: 0;
        }

        .recommendations-list li {
            padding: 0.75rem;
            margin-bottom: 0.5rem;
            background: var(--bg-secondary);
            border-radius: 6px;
            border-left: 4px solid var(--accent);
        }

        /* Compliance Bar */
        .compliance-bar {
            height: 24px;
            background: var(--bg-secondary);
            border-radius: 12px;
            overflow: hidden;
            margin: 1rem 0;
        }

        .compliance-fill {
            height: 100%;
            background: linear-gradient(90deg, var(--outcome-failed), var(--outcome-timeout), var(--outcome-passed));
            border-radius: 12px;
            transition: width 0.5s ease;
        }

        /* Collapsible sections */
        .collapsible-section {
            margin-bottom: 2rem;
        }

        .section-header {
            display: flex;
            align-items: center;
            gap: 0.75rem;
            cursor: pointer;
            user-select: none;
            padding: 0.5rem 0;
        }

        .section-header:hover {
            opacity: 0.8;
        }

        .section-toggle {
            transition: transform 0.2s;
        }

        .collapsible-section.collapsed .section-toggle {
            transform: rotate(-90deg);
        }

        .collapsible-section.collapsed .collapsible-content {
            display: none;
        }

        /* Insight cards */
        .insight-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(260px, 1fr));
            gap: 0.75rem;
        }

        .insight-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 0.75rem 1rem;
        }

        .insight-title {
            font-weight: 600;
            font-size: 0.875rem;
            margin-bottom: 0.25rem;
        }

        .insight-body {
            color: var(--text-secondary);
            font-size: 0.85rem;
        }

        /* Passing categories table */
        .passing-table {
            width: 100%;
            border-collapse: collapse;
            margin: 1rem 0;
            font-size: 0.875rem;
        }

        .passing-table th,
        .passing-table td {
            padding: 0.5rem 0.75rem;
            border: 1px solid var(--border-color);
            text-align: left;
        }

        .passing-table th {
            background: var(--bg-secondary);
            font-weight: 600;
        }

        .passing-table .num-cell {
            text-align: center;
        }

        /* Remediation cards */
        .remediation-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-left: 4px solid var(--level-must);
            border-radius: 8px;
            padding: 0.75rem 1rem;
            margin-bottom: 0.75rem;
        }

        .remediation-title {
            font-weight: 600;
            font-size: 0.875rem;
            margin-bottom: 0.25rem;
        }

        .remediation-body {
            color: var(--text-secondary);
            font-size: 0.85rem;
        }

        .remediation-ref {
            margin-top: 0.35rem;
            font-size: 0.8rem;
        }

        .remediation-ref a {
            color: var(--accent);
            text-decoration: none;
        }

        .remediation-ref a:hover {
            text-decoration: underline;
        }

        /* Method line with copy button */
        .method-line {
            background: var(--bg-secondary);
            border-radius: 6px;
            padding: 0.75rem 1rem;
            margin: 0.5rem 0;
            font-family: 'Monaco', 'Consolas', monospace;
            font-size: 0.8rem;
            border-left: 3px solid var(--accent);
            overflow-x: auto;
        }

        .method-line code {
            white-space: pre-wrap;
            word-break: break-all;
        }

        /* Reference Links */
        .ref-link {
            color: var(--accent);
            text-decoration: none;
        }

        .ref-link:hover {
            text-decoration: underline;
        }

        /* Timestamp display */
        .timestamp {
            color: var(--text-secondary);
            font-size: 0.75rem;
        }
    </style>
</head>
<body>
    <header class="header">
        <div class="header-left">
            {{if .Config.CompanyLogo}}<img src="{{.Config.CompanyLogo}}" alt="Logo" class="logo">{{end}}
            <div class="header-title">
                <h1>{{.Config.Title}}</h1>
                {{if .Config.CompanyName}}<div class="company-name">{{.Config.CompanyName}}</div>{{end}}
            </div>
        </div>
        <div class="header-actions no-print">
            <button class="btn theme-toggle" onclick="toggleTheme()" aria-label="Toggle theme">
                🌓 Theme
            </button>
            <button class="btn" onclick="expandAllChecks()" aria-label="Expand all checks">
                📂 Expand All
            </button>
            <button class="btn" onclick="collapseAllChecks()" aria-label="Collapse all checks">
                📁 Collapse All
            </button>
            <button class="btn" onclick="exportJSON()" aria-label="Export as JSON">
                💾 Export JSON
            </button>
            <button class="btn btn-primary" onclick="printReport()" aria-label="Export to PDF">
                📄 Export PDF
            </button>
        </div>
    </header>

    <!-- Terminal ASCII Art Banner -->
    <div class="terminal-banner no-print">
        <pre class="ascii-art">
███╗   ███╗ ██████╗██████╗  ██████╗ ██████╗ ███╗   ██╗███████╗ ██████╗ ██████╗ ███╗   ███╗
████╗ ████║██╔════╝██╔══██╗██╔════╝██╔═══██╗████╗  ██║██╔════╝██╔═══██╗██╔══██╗████╗ ████║
██╔████╔██║██║     ██████╔╝██║     ██║   ██║██╔██╗ ██║█████╗  ██║   ██║██████╔╝██╔████╔██║
██║╚██╔╝██║██║     ██╔═══╝ ██║     ██║   ██║██║╚██╗██║██╔══╝  ██║   ██║██╔══██╗██║╚██╔╝██║
██║ ╚═╝ ██║╚██████╗██║     ╚██████╗╚██████╔╝██║ ╚████║██║     ╚██████╔╝██║  ██║██║ ╚═╝ ██║
╚═╝     ╚═╝ ╚═════╝╚═╝      ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝╚═╝      ╚═════╝ ╚═╝  ╚═╝╚═╝     ╚═╝
        </pre>
    </div>

    <!-- Report Metadata Bar -->
    <div class="report-meta">
        {{if .Endpoint}}<div class="meta-item"><span class="meta-label">Endpoint:</span> {{.Endpoint}}</div>{{end}}
        {{if .ServerName}}<div class="meta-item"><span class="meta-label">Server:</span> {{.ServerName}}</div>{{end}}
        {{if .Revision}}<div class="meta-item"><span class="meta-label">Revision:</span> {{if .SpecURL}}<a href="{{.SpecURL}}" target="_blank" rel="noopener" class="ref-link">{{.Revision}}</a>{{else}}{{.Revision}}{{end}}</div>{{end}}
        <div class="meta-item"><span class="meta-label">Generated:</span> {{.GeneratedAt}}</div>
        {{if .DurationSeconds}}<div class="meta-item"><span class="meta-label">Duration:</span> {{printf "%.1f" .DurationSeconds}}s</div>{{end}}
    </div>

    <main class="container">
        {{if .Config.ShowExecutiveSummary}}
        <!-- Executive Summary Section -->
        <section class="executive-summary" aria-label="Executive Summary">
            <h2>📋 Executive Summary</h2>
            <div class="summary-grid">
                <div class="summary-card tier-card">
                    <div class="value">{{.Tier}}</div>
                    <div class="label">Compliance Tier</div>
                </div>
                <div class="summary-card">
                    <div class="value">{{printf "%.1f" .Score}}%</div>
                    <div class="label">Compliance Score</div>
                </div>
                <div class="summary-card">
                    <div class="value">{{.TotalChecks}}</div>
                    <div class="label">Total Checks</div>
                </div>
                <div class="summary-card passed-card">
                    <div class="value" style="color: var(--outcome-passed)">{{.TotalPassed}}</div>
                    <div class="label">Passed</div>
                </div>
                <div class="summary-card failed-card">
                    <div class="value" style="color: var(--outcome-failed)">{{.TotalFailed}}</div>
                    <div class="label">Failed</div>
                </div>
                {{if .TotalErrors}}
                <div class="summary-card error-card">
                    <div class="value" style="color: var(--outcome-error)">{{.TotalErrors}}</div>
                    <div class="label">Errors</div>
                </div>
                {{end}}
            </div>

            <!-- Compliance Bar -->
            <div class="compliance-bar">
                <div class="compliance-fill" style="width: {{printf "%.1f" .Score}}%;"></div>
            </div>

            {{if .TopRecommendations}}
            <h3>Key Recommendations</h3>
            <ul class="recommendations-list">
                {{range .TopRecommendations}}
                <li>{{.}}</li>
                {{end}}
            </ul>
            {{end}}
        </section>
        {{else}}
        <!-- Simple Summary Grid -->
        <section class="summary-grid" aria-label="Summary">
            <div class="summary-card tier-card">
                <div class="value">{{.Tier}}</div>
                <div class="label">Compliance Tier</div>
            </div>
            <div class="summary-card">
                <div class="value">{{printf "%.1f" .Score}}%</div>
                <div class="label">Compliance Score</div>
            </div>
            <div class="summary-card">
                <div class="value">{{.TotalChecks}}</div>
                <div class="label">Total Checks</div>
            </div>
            <div class="summary-card passed-card">
                <div class="value" style="color: var(--outcome-passed)">{{.TotalPassed}}</div>
                <div class="label">Passed</div>
            </div>
            <div class="summary-card failed-card">
                <div class="value" style="color: var(--outcome-failed)">{{.TotalFailed}}</div>
                <div class="label">Failed</div>
            </div>
        </section>
        {{end}}

        {{if and .Config.ShowOutcomeChart .OutcomeChartSVG}}
        <!-- Outcome Distribution Chart -->
        <section class="collapsible-section" id="outcome-chart-section">
            <div class="section-header" onclick="toggleSection('outcome-chart-section')">
                <span class="section-toggle">▼</span>
                <h2>📊 Outcome Distribution</h2>
            </div>
            <div class="collapsible-content">
                {{.OutcomeChartSVG | safeHTML}}
            </div>
        </section>
        {{end}}

        <!-- Level Badges -->
        <section class="level-cards" aria-label="Failing Checks by Requirement Level">
            <span class="level-badge level-must">
                <span>MUST</span>
                <span>{{index .LevelFailures "must"}}</span>
            </span>
            <span class="level-badge level-should">
                <span>SHOULD</span>
                <span>{{index .LevelFailures "should"}}</span>
            </span>
            <span class="level-badge level-may">
                <span>MAY</span>
                <span>{{index .LevelFailures "may"}}</span>
            </span>
        </section>

        {{if and .Config.ShowLevelMatrix .LevelMatrixHTML}}
        <!-- Level Matrix -->
        <section class="collapsible-section category-section" id="level-matrix-section">
            <div class="section-header" onclick="toggleSection('level-matrix-section')">
                <span class="section-toggle">▼</span>
                <h2>📈 Level × Outcome Matrix</h2>
            </div>
            <div class="collapsible-content">
                {{.LevelMatrixHTML | safeHTML}}
            </div>
        </section>
        {{end}}

        {{if .Insights}}
        <!-- Run Insights -->
        <section class="collapsible-section category-section" id="insights-section">
            <div class="section-header" onclick="toggleSection('insights-section')">
                <span class="section-toggle">▼</span>
                <h2>💡 Run Insights</h2>
            </div>
            <div class="collapsible-content">
                <div class="insight-grid">
                    {{range .Insights}}
                    <div class="insight-card">
                        <div class="insight-title">{{.Icon}} {{.Title}}</div>
                        <div class="insight-body">{{.Body}}</div>
                    </div>
                    {{end}}
                </div>
            </div>
        </section>
        {{end}}

        {{if .PassingCategories}}
        <!-- Passing Categories -->
        <section class="collapsible-section category-section" id="passing-section">
            <div class="section-header" onclick="toggleSection('passing-section')">
                <span class="section-toggle">▼</span>
                <h2>✅ Passing Categories</h2>
            </div>
            <div class="collapsible-content">
                <table class="passing-table">
                    <thead>
                        <tr>
                            <th>Category</th>
                            <th class="num-cell">Checks</th>
                            <th class="num-cell">Passed</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .PassingCategories}}
                        <tr>
                            <td>{{.Name}}</td>
                            <td class="num-cell">{{.Total}}</td>
                            <td class="num-cell">{{.Passed}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
        </section>
        {{end}}

        {{if .CategoryCoverage}}
        <!-- Category Coverage Grid -->
        <section class="collapsible-section category-section" id="coverage-section" aria-label="Category Coverage">
            <div class="section-header" onclick="toggleSection('coverage-section')">
                <span class="section-toggle">▼</span>
                <h2>📊 Category Coverage</h2>
            </div>
            <div class="collapsible-content">
                <div class="category-grid">
                    {{range .CategoryCoverage}}
                    <div class="category-item">
                        <div class="category-status {{.Status}}" aria-label="{{.Status}}"></div>
                        <div class="category-info">
                            <div class="category-code">{{.Name}}</div>
                        </div>
                        <div class="category-stats">
                            {{if gt .Total 0}}{{.Failures}}/{{.Total}} failing{{end}}
                        </div>
                    </div>
                    {{end}}
                </div>
            </div>
        </section>
        {{end}}

        {{if .Remediations}}
        <!-- Remediation Guidance -->
        <section class="collapsible-section category-section" id="remediation-section">
            <div class="section-header" onclick="toggleSection('remediation-section')">
                <span class="section-toggle">▼</span>
                <h2>🔧 Remediation Guidance</h2>
            </div>
            <div class="collapsible-content">
                {{range .Remediations}}
                <div class="remediation-card">
                    <div class="remediation-title">{{.Category}}: {{.Failures}} failing check(s)</div>
                    <div class="remediation-body">{{.Guidance}}</div>
                    {{if .Reference}}<div class="remediation-ref"><a href="{{.Reference}}" target="_blank" rel="noopener">Specification reference</a></div>{{end}}
                </div>
                {{end}}
            </div>
        </section>
        {{end}}

        <!-- Check Results -->
        <section class="checks-section collapsible-section" id="checks-section" aria-label="Check Results">
            <div class="section-header" onclick="toggleSection('checks-section')">
                <span class="section-toggle">▼</span>
                <h2>🔍 Check Results ({{len .Checks}})</h2>
            </div>
            <div class="collapsible-content">
            <!-- Checks Filter Toolbar -->
            <div class="checks-toolbar no-print">
                <input type="text" class="filter-input" id="checksFilter" placeholder="🔍 Filter checks..." onkeyup="filterChecks()">
                <select class="filter-select" id="levelFilter" onchange="filterChecks()">
                    <option value="">All Levels</option>
                    <option value="must">MUST</option>
                    <option value="should">SHOULD</option>
                    <option value="may">MAY</option>
                </select>
                <select class="filter-select" id="outcomeFilter" onchange="filterChecks()">
                    <option value="">All Outcomes</option>
                    <option value="passed">Passed</option>
                    <option value="failed">Failed</option>
                    <option value="skipped">Skipped</option>
                    <option value="timeout">Timeout</option>
                    <option value="error">Error</option>
                </select>
            </div>
            {{range $i, $c := .Checks}}
            <article class="check collapsible" id="check-{{$i}}">
                <div class="check-header" onclick="toggleCheck({{$i}})" role="button" tabindex="0" aria-expanded="false">
                    <span class="check-toggle" aria-hidden="true">▶</span>
                    <span class="check-title">{{$c.Name}}</span>
                    <div class="check-meta">
                        <span class="badge {{$c.LevelClass}}">{{$c.Level}}</span>
                        <span class="badge {{$c.OutcomeClass}}">{{$c.Outcome}}</span>
                    </div>
                </div>
                <div class="check-body">
                    <div class="check-details">
                        <div class="detail-item">
                            <div class="detail-label">Category</div>
                            <div class="detail-value">{{$c.Category}}</div>
                        </div>
                        <div class="detail-item">
                            <div class="detail-label">Duration</div>
                            <div class="detail-value">{{printf "%.2f" $c.DurationMs}}ms</div>
                        </div>
                        {{if $c.Revision}}
                        <div class="detail-item">
                            <div class="detail-label">Revision</div>
                            <div class="detail-value">{{$c.Revision}}</div>
                        </div>
                        {{end}}
                        {{if $c.Timestamp}}
                        <div class="detail-item">
                            <div class="detail-label">Timestamp</div>
                            <div class="detail-value timestamp">{{$c.Timestamp}}</div>
                        </div>
                        {{end}}
                        {{if $c.Tags}}
                        <div class="detail-item">
                            <div class="detail-label">Tags</div>
                            <div class="detail-value">{{range $j, $t := $c.Tags}}{{if $j}}, {{end}}{{$t}}{{end}}</div>
                        </div>
                        {{end}}
                        {{if $c.Message}}
                        <div class="detail-item">
                            <div class="detail-label">Message</div>
                            <div class="detail-value">{{$c.Message}}</div>
                        </div>
                        {{end}}
                        {{if $c.SkipReason}}
                        <div class="detail-item">
                            <div class="detail-label">Skip Reason</div>
                            <div class="detail-value">{{$c.SkipReason}}</div>
                        </div>
                        {{end}}
                    </div>

                    {{if $c.HasEvidence}}
                    <div class="evidence-section">
                        <h4>Evidence</h4>
                        {{if $c.Method}}
                        <div class="method-line"><code>{{$c.Method}}</code>{{if $c.RequestJSON}}<button class="copy-btn" data-request="{{$c.RequestJSON}}" onclick="copyRequest(this); event.stopPropagation();">📋 Copy Request</button>{{end}}</div>
                        {{end}}
                        {{if $c.RequestJSON}}
                        <h4>Request</h4>
                        <div class="code-block">{{$c.RequestJSON}}</div>
                        {{end}}
                        {{if $c.ResponseJSON}}
                        <h4>Response</h4>
                        <div class="code-block">{{$c.ResponseJSON}}</div>
                        {{end}}
                        {{if $c.Detail}}
                        <div class="code-block">Detail: {{$c.Detail}}</div>
                        {{end}}
                    </div>
                    {{end}}

                    {{if $c.JSONData}}
                    <div class="json-toggle">
                        <button class="json-toggle-btn" onclick="toggleJSON({{$i}}); event.stopPropagation();">
                            Show JSON
                        </button>
                        <div class="json-content" id="json-{{$i}}">
                            <pre class="code-block">{{$c.JSONData}}</pre>
                        </div>
                    </div>
                    {{end}}
                </div>
            </article>
            {{end}}
            </div>
        </section>
    </main>

    <footer class="footer">
        <p>Generated by MCPConform on {{.GeneratedAt}}</p>
        {{if .Endpoint}}<p>Endpoint: {{.Endpoint}}</p>{{end}}
        {{if .ServerName}}<p>Server: {{.ServerName}}</p>{{end}}
    </footer>

    <script>
        // Theme toggle with localStorage persistence
        (function() {
            const saved = localStorage.getItem('mcpconform-theme');
            if (saved) {
                document.documentElement.setAttribute('data-theme', saved);
            } else if (window.matchMedia && window.matchMedia('(prefers-color-scheme: dark)').matches) {
                const current = document.documentElement.getAttribute('data-theme');
                if (current === 'auto') {
                    document.documentElement.setAttribute('data-theme', 'dark');
                }
            }
        })();

        function toggleTheme() {
            const html = document.documentElement;
            const current = html.getAttribute('data-theme');
            const next = current === 'dark' ? 'light' : 'dark';
            html.setAttribute('data-theme', next);
            localStorage.setItem('mcpconform-theme', next);
        }

        // Collapsible sections toggle
        function toggleSection(sectionId) {
            const section = document.getElementById(sectionId);
            if (section) {
                section.classList.toggle('collapsed');
            }
        }

        // Collapsible checks
        function toggleCheck(index) {
            const check = document.getElementById('check-' + index);
            if (check) {
                check.classList.toggle('expanded');
                const header = check.querySelector('.check-header');
                if (header) {
                    header.setAttribute('aria-expanded', check.classList.contains('expanded'));
                }
            }
        }

        // JSON toggle
        function toggleJSON(index) {
            const content = document.getElementById('json-' + index);
            if (content) {
                content.classList.toggle('visible');
                const btn = content.previousElementSibling;
                if (btn) {
                    btn.textContent = content.classList.contains('visible') ? 'Hide JSON' : 'Show JSON';
                }
            }
        }

        // Expand all checks
        function expandAllChecks() {
            document.querySelectorAll('.check').forEach(function(check) {
                check.classList.add('expanded');
                const header = check.querySelector('.check-header');
                if (header) {
                    header.setAttribute('aria-expanded', 'true');
                }
            });
        }

        // Collapse all checks
        function collapseAllChecks() {
            document.querySelectorAll('.check').forEach(function(check) {
                check.classList.remove('expanded');
                const header = check.querySelector('.check-header');
                if (header) {
                    header.setAttribute('aria-expanded', 'false');
                }
            });
        }

        // Print to PDF with all sections expanded
        function printReport() {
            expandAllChecks();
            document.querySelectorAll('.collapsible-section').forEach(function(section) {
                section.classList.remove('collapsed');
            });
            setTimeout(function() {
                window.print();
            }, 100);
        }

        // Keyboard accessibility for checks
        document.querySelectorAll('.check-header').forEach(function(header) {
            header.addEventListener('keydown', function(e) {
                if (e.key === 'Enter' || e.key === ' ') {
                    e.preventDefault();
                    header.click();
                }
            });
        });

        // Keyboard accessibility for section headers
        document.querySelectorAll('.section-header').forEach(function(header) {
            header.setAttribute('tabindex', '0');
            header.setAttribute('role', 'button');
            header.addEventListener('keydown', function(e) {
                if (e.key === 'Enter' || e.key === ' ') {
                    e.preventDefault();
                    header.click();
                }
            });
        });

        // Copy the request JSON carried in the button's data attribute
        function copyRequest(button) {
            const text = button.getAttribute('data-request') || '';
            navigator.clipboard.writeText(text).then(function() {
                const originalText = button.textContent;
                button.textContent = '✓ Copied!';
                button.classList.add('copied');
                setTimeout(function() {
                    button.textContent = originalText;
                    button.classList.remove('copied');
                }, 2000);
            }).catch(function(err) {
                console.error('Failed to copy:', err);
            });
        }

        // Filter checks by text, level, and outcome
        function filterChecks() {
            const text = document.getElementById('checksFilter').value.toLowerCase();
            const level = document.getElementById('levelFilter').value;
            const outcome = document.getElementById('outcomeFilter').value;

            document.querySelectorAll('.check').forEach(function(check) {
                const content = check.textContent.toLowerCase();
                const matchesText = !text || content.includes(text);
                const matchesLevel = !level || check.querySelector('.badge.level-' + level);
                const matchesOutcome = !outcome || check.querySelector('.badge.outcome-' + outcome);

                check.style.display = (matchesText && matchesLevel && matchesOutcome) ? '' : 'none';
            });
        }

        // Export report data as JSON
        function exportJSON() {
            const data = {
                title: "{{.Config.Title}}",
                generated: "{{.GeneratedAt}}",
                endpoint: "{{.Endpoint}}",
                tier: "{{.Tier}}",
                score: {{printf "%.1f" .Score}},
                totals: {
                    checks: {{.TotalChecks}},
                    passed: {{.TotalPassed}},
                    failed: {{.TotalFailed}},
                    skipped: {{.TotalSkipped}},
                    errors: {{.TotalErrors}},
                    timeouts: {{.TotalTimeouts}}
                }
            };
            const blob = new Blob([JSON.stringify(data, null, 2)], {type: 'application/json'});
            const url = URL.createObjectURL(blob);
            const a = document.createElement('a');
            a.href = url;
            a.download = 'mcpconform-report.json';
            document.body.appendChild(a);
            a.click();
            document.body.removeChild(a);
            URL.revokeObjectURL(url);
        }
    </script>
</body>
</html>`
