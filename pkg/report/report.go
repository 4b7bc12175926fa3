// Package report assembles the archival record of a conformance run
package report

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/mcpconform/mcpconform/pkg/conformance"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// ReportFormat defines output format
type ReportFormat string

const (
	FormatHTML     ReportFormat = "html"
	FormatPDF      ReportFormat = "pdf"
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
	FormatText     ReportFormat = "text"
)

// CheckRecord is one check verdict as archived in a report
type CheckRecord struct {
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Level      scoring.Level   `json:"level"`
	Outcome    scoring.Outcome `json:"outcome"`
	Message    string          `json:"message,omitempty"`
	DurationMs float64         `json:"duration_ms"`
}

// Failing reports whether the record counts against the server.
// Timeouts and harness errors land here too: a check that could not
// produce a pass is a failure for report accounting.
func (r CheckRecord) Failing() bool {
	switch r.Outcome {
	case scoring.OutcomeFailed, scoring.OutcomeTimedOut, scoring.OutcomeErrored:
		return true
	}
	return false
}

// ToolInfo identifies the harness that produced a report
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

// Target describes the server under assessment
type Target struct {
	Endpoint      string `json:"endpoint"`
	Transport     string `json:"transport"`
	Revision      string `json:"revision,omitempty"`
	ServerName    string `json:"server_name,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
}

// Totals aggregates check outcomes for one run
type Totals struct {
	Checks   int `json:"checks"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Timeouts int `json:"timeouts"`
	Errors   int `json:"errors"`
}

// Summary is the front matter of a report: what ran, how it scored,
// and what to fix first
type Summary struct {
	Title           string             `json:"title"`
	ReportDate      time.Time          `json:"report_date"`
	Totals          Totals             `json:"totals"`
	Compliance      scoring.Compliance `json:"compliance"`
	KeyFailures     []string           `json:"key_failures"`
	Recommendations []string           `json:"recommendations"`
	Conclusion      string             `json:"conclusion"`
}

// Counts holds outcome counters for one slice of the run.
// Timeouts and harness errors fold into Failed; the full split
// lives in Totals.
type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Breakdown slices the run by category and by requirement level
type Breakdown struct {
	ByCategory map[string]Counts `json:"by_category"`
	ByLevel    map[string]Counts `json:"by_level"`
}

// TransportStats holds wire-level counters observed during the run
type TransportStats struct {
	Requests      int            `json:"requests"`
	Notifications int            `json:"notifications"`
	Retries       int            `json:"retries"`
	Reconnects    int            `json:"reconnects"`
	ByMethod      map[string]int `json:"by_method,omitempty"`
}

// TimeRange marks when the run started and finished
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the complete archival record of one conformance run
type Report struct {
	ID          string         `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tool        ToolInfo       `json:"tool"`
	Target      Target         `json:"target"`
	Window      TimeRange      `json:"window"`
	Summary     Summary        `json:"summary"`
	Breakdown   Breakdown      `json:"breakdown"`
	Transport   TransportStats `json:"transport"`
	Results     []CheckRecord  `json:"results"`
	Format      ReportFormat   `json:"format"`
}

// ReportBuilder builds reports from check results
type ReportBuilder struct {
	records        []CheckRecord
	config         ReportConfig
	transportStats TransportStats
}

// ReportConfig configures report generation
type ReportConfig struct {
	Title         string       `json:"title"`
	RunID         string       `json:"run_id,omitempty"`
	Target        string       `json:"target"`
	Transport     string       `json:"transport"`
	Revision      string       `json:"revision"`
	ServerName    string       `json:"server_name,omitempty"`
	ServerVersion string       `json:"server_version,omitempty"`
	Format        ReportFormat `json:"format"`
	Started       time.Time    `json:"started,omitzero"`
	Completed     time.Time    `json:"completed,omitzero"`
}

// NewReportBuilder creates a new report builder
func NewReportBuilder(config ReportConfig) *ReportBuilder {
	return &ReportBuilder{
		records: make([]CheckRecord, 0),
		config:  config,
	}
}

// AddResult adds one runner verdict to the report
func (b *ReportBuilder) AddResult(r conformance.TestResult) {
	b.records = append(b.records, CheckRecord{
		Name:       r.Name,
		Category:   r.Category,
		Level:      r.Level,
		Outcome:    r.Outcome,
		Message:    r.Message,
		DurationMs: r.DurationMs,
	})
}

// AddResults adds multiple runner verdicts
func (b *ReportBuilder) AddResults(rs []conformance.TestResult) {
	for _, r := range rs {
		b.AddResult(r)
	}
}

// SetConfig updates the configuration
func (b *ReportBuilder) SetConfig(config ReportConfig) {
	b.config = config
}

// GetConfig returns the current configuration
func (b *ReportBuilder) GetConfig() ReportConfig {
	return b.config
}

// SetTransportStats records wire-level counters for the report
func (b *ReportBuilder) SetTransportStats(requests, notifications, retries, reconnects int, byMethod map[string]int) {
	b.transportStats = TransportStats{
		Requests:      requests,
		Notifications: notifications,
		Retries:       retries,
		Reconnects:    reconnects,
		ByMethod:      byMethod,
	}
}

// Build generates the report
func (b *ReportBuilder) Build() *Report {
	// Worst verdicts first, MUST before MAY within a verdict. Ties keep
	// run order.
	sort.SliceStable(b.records, func(i, j int) bool {
		oi, oj := outcomeOrder(b.records[i].Outcome), outcomeOrder(b.records[j].Outcome)
		if oi != oj {
			return oi > oj
		}
		return b.records[i].Level.Weight() > b.records[j].Level.Weight()
	})

	id := b.config.RunID
	if id == "" {
		id = uuid.NewString()
	}

	report := &Report{
		ID:          id,
		Fingerprint: Fingerprint(b.config.Target, b.config.Revision, b.records),
		Version:     "1.0",
		GeneratedAt: time.Now(),
		Tool: ToolInfo{
			Name:    defaults.ToolName,
			Version: defaults.Version,
			URL:     defaults.ToolURL,
		},
		Target: Target{
			Endpoint:      b.config.Target,
			Transport:     b.config.Transport,
			Revision:      b.config.Revision,
			ServerName:    b.config.ServerName,
			ServerVersion: b.config.ServerVersion,
		},
		Window:    TimeRange{Start: b.config.Started, End: b.config.Completed},
		Transport: b.transportStats,
		Results:   b.records,
		Format:    b.config.Format,
	}

	report.Summary = b.buildSummary()
	report.Breakdown = b.buildBreakdown()

	return report
}

func (b *ReportBuilder) buildSummary() Summary {
	summary := Summary{
		Title:           b.config.Title,
		ReportDate:      time.Now(),
		KeyFailures:     make([]string, 0),
		Recommendations: make([]string, 0),
	}

	inputs := make([]scoring.Input, 0, len(b.records))
	for _, r := range b.records {
		summary.Totals.Checks++
		switch r.Outcome {
		case scoring.OutcomePassed:
			summary.Totals.Passed++
		case scoring.OutcomeFailed:
			summary.Totals.Failed++
		case scoring.OutcomeSkipped:
			summary.Totals.Skipped++
		case scoring.OutcomeTimedOut:
			summary.Totals.Timeouts++
		case scoring.OutcomeErrored:
			summary.Totals.Errors++
		}
		inputs = append(inputs, scoring.Input{Level: r.Level, Outcome: r.Outcome})
	}

	summary.Compliance = scoring.Calculate(inputs, b.config.Revision)

	// Key failures: up to 5, records are already sorted worst-first
	for _, r := range b.records {
		if !r.Failing() {
			continue
		}
		line := fmt.Sprintf("%s (%s, %s)", r.Name, r.Category, r.Level)
		if r.Message != "" {
			line += ": " + r.Message
		}
		summary.KeyFailures = append(summary.KeyFailures, line)
		if len(summary.KeyFailures) >= 5 {
			break
		}
	}

	summary.Recommendations = b.generateRecommendations()
	summary.Conclusion = generateConclusion(summary.Compliance)

	return summary
}

func (b *ReportBuilder) buildBreakdown() Breakdown {
	breakdown := Breakdown{
		ByCategory: make(map[string]Counts),
		ByLevel:    make(map[string]Counts),
	}

	for _, r := range b.records {
		byCat := breakdown.ByCategory[r.Category]
		byLvl := breakdown.ByLevel[string(r.Level)]
		byCat.Total++
		byLvl.Total++
		switch {
		case r.Outcome == scoring.OutcomePassed:
			byCat.Passed++
			byLvl.Passed++
		case r.Outcome == scoring.OutcomeSkipped:
			byCat.Skipped++
			byLvl.Skipped++
		case r.Failing():
			byCat.Failed++
			byLvl.Failed++
		}
		breakdown.ByCategory[r.Category] = byCat
		breakdown.ByLevel[string(r.Level)] = byLvl
	}

	return breakdown
}

// categoryAdvice maps a failing category to the remediation a reader
// should start with.
var categoryAdvice = map[string]string{
	conformance.CategoryCore:  "Fix the initialize handshake and lifecycle notifications first; every other behavior is graded against a correctly established session",
	conformance.CategoryTools: "Align tools/list descriptors with their declared schemas and validate tools/call arguments against them before execution",
	conformance.CategoryAsync: "Keep async operation status transitions monotonic and terminal payloads stable across repeated polls",
	conformance.CategorySpec:  "Reject malformed frames with -32700 and unknown methods with -32601, and never attach an id to a notification",
}

func (b *ReportBuilder) generateRecommendations() []string {
	recommendations := make([]string, 0)

	failingCategories := make(map[string]bool)
	mustFailures := 0
	for _, r := range b.records {
		if !r.Failing() {
			continue
		}
		failingCategories[r.Category] = true
		if r.Level == scoring.LevelMust {
			mustFailures++
		}
	}

	if mustFailures > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("Resolve the %d MUST-level failure(s) before anything else; MUST checks carry ten times the weight of MAY checks and cap the compliance tier", mustFailures))
	}

	categories := make([]string, 0, len(failingCategories))
	for category := range failingCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		if advice, ok := categoryAdvice[category]; ok {
			recommendations = append(recommendations, advice)
		}
	}

	// General recommendations
	recommendations = append(recommendations,
		"Re-run the suite after each fix; the run fingerprint changes only when the verdict set changes",
		"Pin the protocol revision explicitly once negotiation checks pass, so upgrades are a deliberate step",
	)

	return recommendations
}

func generateConclusion(c scoring.Compliance) string {
	if !c.Applicable {
		return "No applicable checks were counted in this run. The score is not meaningful; " +
			"widen the category selection or remove skip flags and run again."
	}
	switch c.Tier {
	case scoring.TierFully:
		return "The server satisfies every applicable requirement at every level. " +
			"It can be advertised as conformant for the assessed protocol revision."
	case scoring.TierSubstantially:
		return "The server meets the protocol's mandatory requirements with minor gaps. " +
			"The remaining failures are suitable for a regular maintenance cycle."
	case scoring.TierPartially:
		return "The server implements the protocol's core but fails requirements that " +
			"clients rely on. Interoperability problems should be expected until the " +
			"MUST-level failures are resolved."
	case scoring.TierMinimally:
		return "Large parts of the assessed surface do not behave as specified. " +
			"Treat the server as experimental and prioritize the failures in order."
	default:
		return "The server does not implement the protocol as specified. A review of " +
			"the handshake and message framing is required before further assessment " +
			"is useful."
	}
}

// Fingerprint derives a stable 64-bit identity for a run from the target,
// the negotiated revision, and every check verdict. Record order does not
// matter: two runs with identical verdicts fingerprint identically.
func Fingerprint(target, revision string, records []CheckRecord) string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Category+"/"+r.Name+"="+string(r.Outcome))
	}
	sort.Strings(keys)

	h := murmur3.New64()
	io.WriteString(h, target)
	io.WriteString(h, "\n")
	io.WriteString(h, revision)
	for _, k := range keys {
		io.WriteString(h, "\n")
		io.WriteString(h, k)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ReportGenerator generates reports in various formats
type ReportGenerator struct {
	templates map[ReportFormat]*template.Template
}

// NewReportGenerator creates a new report generator
func NewReportGenerator() *ReportGenerator {
	g := &ReportGenerator{
		templates: make(map[ReportFormat]*template.Template),
	}
	g.loadDefaultTemplates()
	return g
}

// Generate renders the report to w in the report's configured format.
// PDF is not rendered here: binary report output is produced by the run
// output pipeline, which owns the page layout.
func (g *ReportGenerator) Generate(report *Report, w io.Writer) error {
	switch report.Format {
	case FormatJSON:
		return g.generateJSON(report, w)
	case FormatHTML:
		return g.generateHTML(report, w)
	case FormatMarkdown:
		return g.generateMarkdown(report, w)
	case FormatText:
		return g.generateText(report, w)
	case FormatPDF:
		return fmt.Errorf("pdf reports are produced by the run output pipeline: pass an --output path ending in .pdf to the run command")
	default:
		return fmt.Errorf("unsupported report format: %s", report.Format)
	}
}

// GenerateToString renders the report and returns it as a string
func (g *ReportGenerator) GenerateToString(report *Report) (string, error) {
	var sb strings.Builder
	if err := g.Generate(report, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *ReportGenerator) generateJSON(report *Report, w io.Writer) error {
	encoder := jsonutil.NewStreamEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (g *ReportGenerator) generateHTML(report *Report, w io.Writer) error {
	tmpl, ok := g.templates[FormatHTML]
	if !ok {
		return fmt.Errorf("html template not loaded")
	}
	return tmpl.Execute(w, report)
}

func (g *ReportGenerator) generateMarkdown(report *Report, w io.Writer) error {
	tmpl, ok := g.templates[FormatMarkdown]
	if !ok {
		return fmt.Errorf("markdown template not loaded")
	}
	return tmpl.Execute(w, report)
}

func (g *ReportGenerator) generateText(report *Report, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 72) + "\n")
	title := report.Summary.Title
	if title == "" {
		title = "MCP CONFORMANCE REPORT"
	}
	sb.WriteString(centerText(strings.ToUpper(title), 72) + "\n")
	sb.WriteString(strings.Repeat("=", 72) + "\n\n")

	sb.WriteString(fmt.Sprintf("Generated:   %s\n", report.GeneratedAt.Format(time.RFC1123)))
	sb.WriteString(fmt.Sprintf("Tool:        %s %s\n", report.Tool.Name, report.Tool.Version))
	sb.WriteString(fmt.Sprintf("Target:      %s (%s)\n", report.Target.Endpoint, report.Target.Transport))
	if report.Target.Revision != "" {
		sb.WriteString(fmt.Sprintf("Revision:    %s\n", report.Target.Revision))
	}
	sb.WriteString(fmt.Sprintf("Fingerprint: %s\n\n", report.Fingerprint))

	c := report.Summary.Compliance
	if c.Applicable {
		sb.WriteString(fmt.Sprintf("SCORE: %.1f  (%s)\n", c.Score, c.Tier))
	} else {
		sb.WriteString("SCORE: n/a (no applicable checks)\n")
	}
	sb.WriteString(fmt.Sprintf("MUST %d/%d  SHOULD %d/%d  MAY %d/%d\n\n",
		c.Must.Passed, c.Must.Total,
		c.Should.Passed, c.Should.Total,
		c.May.Passed, c.May.Total))

	t := report.Summary.Totals
	sb.WriteString(fmt.Sprintf("CHECKS: %d total, %d passed, %d failed, %d skipped, %d timeouts, %d errors\n\n",
		t.Checks, t.Passed, t.Failed, t.Skipped, t.Timeouts, t.Errors))

	sb.WriteString(strings.Repeat("-", 72) + "\n")
	sb.WriteString("RESULTS\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	for _, r := range report.Results {
		sb.WriteString(fmt.Sprintf("[%s] %s: %s (%s, %.1fms)\n",
			r.Level, r.Name, r.Outcome, r.Category, r.DurationMs))
		if r.Message != "" {
			sb.WriteString("    " + r.Message + "\n")
		}
	}

	if len(report.Summary.Recommendations) > 0 {
		sb.WriteString("\nRECOMMENDATIONS\n")
		for i, rec := range report.Summary.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}

	if report.Summary.Conclusion != "" {
		sb.WriteString("\n" + report.Summary.Conclusion + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func centerText(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// SetTemplate sets a custom template for a format
func (g *ReportGenerator) SetTemplate(format ReportFormat, tmpl *template.Template) {
	g.templates[format] = tmpl
}

// GetTemplate returns the template for a format
func (g *ReportGenerator) GetTemplate(format ReportFormat) *template.Template {
	return g.templates[format]
}

func (g *ReportGenerator) loadDefaultTemplates() {
	htmlTmpl := `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{if .Summary.Title}}{{.Summary.Title}}{{else}}MCP Conformance Report{{end}}</title>
<style>
body { font-family: system-ui, -apple-system, sans-serif; margin: 0; background: #f5f6f8; color: #1a202c; }
.container { max-width: 960px; margin: 0 auto; padding: 32px 24px; }
.header { background: #1a202c; color: #fff; padding: 32px 24px; }
.header h1 { margin: 0 0 8px; font-size: 26px; }
.header .meta { color: #a0aec0; font-size: 13px; }
.score-hero { display: flex; align-items: baseline; gap: 16px; margin: 24px 0; }
.score-hero .score { font-size: 48px; font-weight: 700; }
.score-hero .tier { font-size: 18px; color: #4a5568; }
.stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 12px; margin: 24px 0; }
.stat { background: #fff; border-radius: 8px; padding: 16px; text-align: center; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.stat .value { font-size: 28px; font-weight: 700; }
.stat .label { font-size: 12px; color: #718096; text-transform: uppercase; letter-spacing: 0.05em; }
table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 8px; overflow: hidden; box-shadow: 0 1px 3px rgba(0,0,0,0.08); margin: 16px 0; }
th { background: #edf2f7; text-align: left; padding: 10px 12px; font-size: 12px; text-transform: uppercase; letter-spacing: 0.05em; color: #4a5568; }
td { padding: 10px 12px; border-top: 1px solid #edf2f7; font-size: 14px; }
.outcome-passed { color: #22863a; font-weight: 600; }
.outcome-failed { color: #cb2431; font-weight: 600; }
.outcome-skipped { color: #6a737d; }
.outcome-timedOut { color: #b08800; font-weight: 600; }
.outcome-errored { color: #735c0f; font-weight: 600; }
.level-MUST { font-weight: 700; }
.section { margin: 32px 0; }
.section h2 { font-size: 18px; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px; }
ul.recommendations li { margin: 8px 0; }
.conclusion { background: #fff; border-left: 4px solid #3182ce; border-radius: 4px; padding: 16px; }
.footer { color: #a0aec0; font-size: 12px; margin-top: 48px; text-align: center; }
</style>
</head>
<body>
<div class="header">
<div class="container">
<h1>{{if .Summary.Title}}{{.Summary.Title}}{{else}}MCP Conformance Report{{end}}</h1>
<div class="meta">
{{.Target.Endpoint}} via {{.Target.Transport}}{{if .Target.Revision}} &middot; revision {{.Target.Revision}}{{end}}<br>
Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} by {{.Tool.Name}} {{.Tool.Version}} &middot; fingerprint {{.Fingerprint}}
</div>
</div>
</div>
<div class="container">
<div class="score-hero">
{{if .Summary.Compliance.Applicable}}<span class="score">{{printf "%.1f" .Summary.Compliance.Score}}</span><span class="tier">{{.Summary.Compliance.Tier}}</span>{{else}}<span class="score">n/a</span><span class="tier">no applicable checks</span>{{end}}
</div>
<div class="stats-grid">
<div class="stat"><div class="value">{{.Summary.Totals.Checks}}</div><div class="label">Checks</div></div>
<div class="stat"><div class="value">{{.Summary.Totals.Passed}}</div><div class="label">Passed</div></div>
<div class="stat"><div class="value">{{.Summary.Totals.Failed}}</div><div class="label">Failed</div></div>
<div class="stat"><div class="value">{{.Summary.Totals.Skipped}}</div><div class="label">Skipped</div></div>
<div class="stat"><div class="value">{{.Summary.Totals.Timeouts}}</div><div class="label">Timeouts</div></div>
<div class="stat"><div class="value">{{.Summary.Totals.Errors}}</div><div class="label">Errors</div></div>
</div>
<div class="section">
<h2>Requirement Levels</h2>
<table>
<tr><th>Level</th><th>Passed</th><th>Total</th></tr>
<tr><td class="level-MUST">MUST</td><td>{{.Summary.Compliance.Must.Passed}}</td><td>{{.Summary.Compliance.Must.Total}}</td></tr>
<tr><td>SHOULD</td><td>{{.Summary.Compliance.Should.Passed}}</td><td>{{.Summary.Compliance.Should.Total}}</td></tr>
<tr><td>MAY</td><td>{{.Summary.Compliance.May.Passed}}</td><td>{{.Summary.Compliance.May.Total}}</td></tr>
</table>
</div>
{{if .Summary.KeyFailures}}<div class="section">
<h2>Key Failures</h2>
<ul>
{{range .Summary.KeyFailures}}<li>{{.}}</li>
{{end}}</ul>
</div>{{end}}
<div class="section">
<h2>Results</h2>
<table>
<tr><th>Check</th><th>Category</th><th>Level</th><th>Outcome</th><th>Duration</th></tr>
{{range .Results}}<tr>
<td>{{.Name}}{{if .Message}}<br><small>{{.Message}}</small>{{end}}</td>
<td>{{.Category}}</td>
<td class="level-{{.Level}}">{{.Level}}</td>
<td class="outcome-{{.Outcome}}">{{.Outcome}}</td>
<td>{{printf "%.1f" .DurationMs}}ms</td>
</tr>
{{end}}</table>
</div>
{{if .Summary.Recommendations}}<div class="section">
<h2>Recommendations</h2>
<ul class="recommendations">
{{range .Summary.Recommendations}}<li>{{.}}</li>
{{end}}</ul>
</div>{{end}}
{{if .Summary.Conclusion}}<div class="section">
<h2>Conclusion</h2>
<div class="conclusion">{{.Summary.Conclusion}}</div>
</div>{{end}}
<div class="footer">{{.Tool.Name}} {{.Tool.Version}} &middot; {{.Tool.URL}}</div>
</div>
</body>
</html>`

	t, err := template.New("html").Parse(htmlTmpl)
	if err == nil {
		g.templates[FormatHTML] = t
	}

	mdTmpl := `# {{if .Summary.Title}}{{.Summary.Title}}{{else}}MCP Conformance Report{{end}}

**Target:** {{.Target.Endpoint}} ({{.Target.Transport}}){{if .Target.Revision}}
**Revision:** {{.Target.Revision}}{{end}}
**Generated:** {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
**Tool:** {{.Tool.Name}} {{.Tool.Version}}
**Fingerprint:** ` + "`{{.Fingerprint}}`" + `

## Score

{{if .Summary.Compliance.Applicable}}**{{printf "%.1f" .Summary.Compliance.Score}}** — {{.Summary.Compliance.Tier}}{{else}}n/a — no applicable checks{{end}}

| Level | Passed | Total |
|-------|--------|-------|
| MUST | {{.Summary.Compliance.Must.Passed}} | {{.Summary.Compliance.Must.Total}} |
| SHOULD | {{.Summary.Compliance.Should.Passed}} | {{.Summary.Compliance.Should.Total}} |
| MAY | {{.Summary.Compliance.May.Passed}} | {{.Summary.Compliance.May.Total}} |

## Totals

| Checks | Passed | Failed | Skipped | Timeouts | Errors |
|--------|--------|--------|---------|----------|--------|
| {{.Summary.Totals.Checks}} | {{.Summary.Totals.Passed}} | {{.Summary.Totals.Failed}} | {{.Summary.Totals.Skipped}} | {{.Summary.Totals.Timeouts}} | {{.Summary.Totals.Errors}} |
{{if .Summary.KeyFailures}}
## Key Failures
{{range .Summary.KeyFailures}}
- {{.}}{{end}}
{{end}}
## Results

| Check | Category | Level | Outcome | Duration |
|-------|----------|-------|---------|----------|
{{range .Results}}| {{.Name}} | {{.Category}} | {{.Level}} | {{.Outcome}} | {{printf "%.1f" .DurationMs}}ms |
{{end}}{{if .Summary.Recommendations}}
## Recommendations
{{range .Summary.Recommendations}}
1. {{.}}{{end}}
{{end}}{{if .Summary.Conclusion}}
## Conclusion

{{.Summary.Conclusion}}
{{end}}
---
*Generated by {{.Tool.Name}} {{.Tool.Version}} ({{.Tool.URL}})*
`

	g.templates[FormatMarkdown] = template.Must(template.New("markdown").Parse(mdTmpl))
}

func outcomeOrder(o scoring.Outcome) int {
	switch o {
	case scoring.OutcomeFailed:
		return 5
	case scoring.OutcomeTimedOut:
		return 4
	case scoring.OutcomeErrored:
		return 3
	case scoring.OutcomePassed:
		return 2
	case scoring.OutcomeSkipped:
		return 1
	default:
		return 0
	}
}

// ComparisonReport summarizes how a run moved against a baseline run
type ComparisonReport struct {
	BaselineDate time.Time     `json:"baseline_date"`
	CurrentDate  time.Time     `json:"current_date"`
	NewFailures  []CheckRecord `json:"new_failures"`
	Fixed        []CheckRecord `json:"fixed"`
	StillFailing []CheckRecord `json:"still_failing"`
	ScoreDelta   float64       `json:"score_delta"`
	Trend        string        `json:"trend"`
	Summary      string        `json:"summary"`
}

// CompareReports diffs the failure sets of two runs of the same target.
// Checks are matched by category and name, so renaming a check breaks
// its history on purpose.
func CompareReports(baseline, current *Report) *ComparisonReport {
	comparison := &ComparisonReport{
		BaselineDate: baseline.GeneratedAt,
		CurrentDate:  current.GeneratedAt,
		NewFailures:  make([]CheckRecord, 0),
		Fixed:        make([]CheckRecord, 0),
		StillFailing: make([]CheckRecord, 0),
	}

	key := func(r CheckRecord) string { return r.Category + "/" + r.Name }

	baselineFailures := make(map[string]CheckRecord)
	for _, r := range baseline.Results {
		if r.Failing() {
			baselineFailures[key(r)] = r
		}
	}

	currentFailures := make(map[string]bool)
	for _, r := range current.Results {
		if !r.Failing() {
			continue
		}
		currentFailures[key(r)] = true
		if _, ok := baselineFailures[key(r)]; ok {
			comparison.StillFailing = append(comparison.StillFailing, r)
		} else {
			comparison.NewFailures = append(comparison.NewFailures, r)
		}
	}

	for k, r := range baselineFailures {
		if !currentFailures[k] {
			comparison.Fixed = append(comparison.Fixed, r)
		}
	}
	sort.Slice(comparison.Fixed, func(i, j int) bool {
		return key(comparison.Fixed[i]) < key(comparison.Fixed[j])
	})

	comparison.ScoreDelta = current.Summary.Compliance.Score - baseline.Summary.Compliance.Score

	switch {
	case len(comparison.NewFailures) > len(comparison.Fixed):
		comparison.Trend = "degrading"
	case len(comparison.Fixed) > len(comparison.NewFailures):
		comparison.Trend = "improving"
	default:
		comparison.Trend = "stable"
	}

	comparison.Summary = fmt.Sprintf("%d new, %d fixed, %d unchanged failures; compliance %s (score %+.1f)",
		len(comparison.NewFailures), len(comparison.Fixed), len(comparison.StillFailing),
		comparison.Trend, comparison.ScoreDelta)

	return comparison
}
