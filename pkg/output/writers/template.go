// Package writers provides output writers for various formats.
package writers

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*TemplateWriter)(nil)

// TemplateConfig configures the template writer.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template string (alternative to TemplatePath).
	TemplateString string

	// BuiltIn is the name of a built-in template: "csv", "badge", "text-summary".
	BuiltIn string
}

// builtInTemplates contains pre-defined templates for common output formats.
var builtInTemplates = map[string]string{
	"csv": `Name,Category,Level,Outcome,DurationMs,Message
{{- range .Results }}
{{ .Check.Name }},{{ .Check.Category }},{{ .Check.Level }},{{ .Result.Outcome }},{{ printf "%.2f" .Result.DurationMs }},{{ escapeCSV .Result.Message }}
{{- end }}`,

	// badge renders a shields.io endpoint JSON document for README badges.
	"badge": `{
  "schemaVersion": 1,
  "label": "MCP conformance",
  "message": "{{ printf "%.1f" .Score }}% ({{ .Tier }})",
  "color": "{{ if ge .Score 90.0 }}brightgreen{{ else if ge .Score 75.0 }}yellow{{ else if ge .Score 50.0 }}orange{{ else }}red{{ end }}"
}`,

	"text-summary": `MCP Conformance Summary
=======================
Target: {{ .Target }}
Generated: {{ .Timestamp }}
Duration: {{ printf "%.2f" .Duration }}s

Results:
  Total Checks: {{ .TotalChecks }}
  Passed: {{ .Passed }}
  Failed: {{ .Failed }}
  Skipped: {{ .Skipped }}
  Errors: {{ .Errors }}

Score: {{ printf "%.1f" .Score }}% ({{ .Tier }})
{{ if gt .Failed 0 }}
Failures by Level:
{{- range $lvl, $count := .FailureCounts }}
  {{ levelIcon $lvl }} {{ $lvl }}: {{ $count }}
{{- end }}
{{ end }}`,
}

// TemplateWriter renders events using Go templates.
// It buffers all events in memory and renders the template on Close.
// The writer supports custom templates, inline templates, and built-in templates.
// Sprig functions and conformance-specific functions are available in templates.
type TemplateWriter struct {
	w         io.Writer
	mu        sync.Mutex
	config    TemplateConfig
	tmpl      *template.Template
	results   []*events.ResultEvent
	summary   *events.SummaryEvent
	runID     string
	startTime time.Time
}

// NewTemplateWriter creates a new template writer.
// It parses the template immediately and returns an error if the template is invalid.
// The writer buffers all events and writes the rendered template on Close.
func NewTemplateWriter(w io.Writer, config TemplateConfig) (*TemplateWriter, error) {
	tw := &TemplateWriter{
		w:         w,
		config:    config,
		results:   make([]*events.ResultEvent, 0),
		startTime: time.Now(),
	}

	// Parse template
	if err := tw.parseTemplate(); err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}

	return tw, nil
}

// parseTemplate parses the template from config (path, string, or built-in).
func (tw *TemplateWriter) parseTemplate() error {
	var templateContent string

	// Determine template source
	switch {
	case tw.config.TemplatePath != "":
		content, err := os.ReadFile(tw.config.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		templateContent = string(content)

	case tw.config.TemplateString != "":
		templateContent = tw.config.TemplateString

	case tw.config.BuiltIn != "":
		content, ok := builtInTemplates[tw.config.BuiltIn]
		if !ok {
			return fmt.Errorf("unknown built-in template: %s (available: csv, badge, text-summary)", tw.config.BuiltIn)
		}
		templateContent = content

	default:
		return fmt.Errorf("no template specified: set TemplatePath, TemplateString, or BuiltIn")
	}

	// Create function map with Sprig functions
	funcMap := sprig.TxtFuncMap()

	// Add conformance-specific functions
	funcMap["escapeCSV"] = tmplEscapeCSV
	funcMap["escapeXML"] = tmplEscapeXML
	funcMap["levelIcon"] = tmplLevelIcon
	funcMap["json"] = tmplToJSON
	funcMap["prettyJSON"] = tmplPrettyJSON

	// Parse template with all functions
	tmpl, err := template.New("mcpconform").Funcs(funcMap).Parse(templateContent)
	if err != nil {
		return fmt.Errorf("parse output template: %w", err)
	}

	tw.tmpl = tmpl
	return nil
}

// Write buffers an event for later template rendering.
func (tw *TemplateWriter) Write(event events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Capture run ID from first event
	if tw.runID == "" {
		tw.runID = event.RunID()
	}

	switch e := event.(type) {
	case *events.ResultEvent:
		tw.results = append(tw.results, e)
	case *events.SummaryEvent:
		tw.summary = e
	}
	return nil
}

// Flush is a no-op for template writer.
// All events are rendered as a single document on Close.
func (tw *TemplateWriter) Flush() error {
	return nil
}

// Close renders the template with all buffered events and writes to the output.
func (tw *TemplateWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data := tw.buildTemplateData()

	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}

	if closer, ok := tw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for result and summary events.
func (tw *TemplateWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeResult, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// tmplData holds all data available to templates.
type tmplData struct {
	// Basic info
	RunID     string
	Target    string
	Revision  string
	Timestamp string
	Duration  float64

	// Results
	Results  []*tmplResultData
	Failures []*tmplResultData

	// Summary counts
	TotalChecks int
	Passed      int
	Failed      int
	Skipped     int
	Timeouts    int
	Errors      int
	Score       float64
	Tier        string

	// Breakdown
	FailureCounts  map[string]int
	CategoryCounts map[string]int
}

// tmplResultData is a flattened view of ResultEvent for easier template access.
type tmplResultData struct {
	Check    events.CheckInfo
	Result   events.ResultInfo
	Evidence *events.Evidence
}

// buildTemplateData constructs the data object for template rendering.
func (tw *TemplateWriter) buildTemplateData() *tmplData {
	data := &tmplData{
		RunID:          tw.runID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Results:        make([]*tmplResultData, 0, len(tw.results)),
		Failures:       make([]*tmplResultData, 0),
		FailureCounts:  make(map[string]int),
		CategoryCounts: make(map[string]int),
	}

	// Process results
	for _, r := range tw.results {
		rd := &tmplResultData{
			Check:    r.Check,
			Result:   r.Result,
			Evidence: r.Evidence,
		}
		data.Results = append(data.Results, rd)

		// Count by outcome
		switch r.Result.Outcome {
		case events.OutcomePassed:
			data.Passed++
		case events.OutcomeFailed:
			data.Failed++
			data.Failures = append(data.Failures, rd)
			data.FailureCounts[string(r.Check.Level)]++
		case events.OutcomeSkipped:
			data.Skipped++
		case events.OutcomeTimedOut:
			data.Timeouts++
			data.Failures = append(data.Failures, rd)
			data.FailureCounts[string(r.Check.Level)]++
		case events.OutcomeErrored:
			data.Errors++
			data.Failures = append(data.Failures, rd)
			data.FailureCounts[string(r.Check.Level)]++
		}

		// Count by category
		data.CategoryCounts[r.Check.Category]++
	}

	data.TotalChecks = len(tw.results)

	// Extract summary data if available
	if tw.summary != nil {
		data.Target = tw.summary.Target.Endpoint
		data.Revision = tw.summary.Target.Revision
		data.Duration = tw.summary.Timing.DurationSec
		data.Score = tw.summary.Compliance.Score
		data.Tier = tw.summary.Compliance.Tier
	}

	return data
}

// Template helper functions

// tmplEscapeCSV escapes a string for CSV output.
// It wraps the value in quotes if it contains commas, quotes, or newlines.
func tmplEscapeCSV(s string) string {
	if s == "" {
		return ""
	}
	needsQuote := strings.ContainsAny(s, ",\"\n\r")
	if needsQuote {
		escaped := strings.ReplaceAll(s, "\"", "\"\"")
		return "\"" + escaped + "\""
	}
	return s
}

// tmplEscapeXML escapes a string for XML output.
func tmplEscapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// tmplLevelIcon returns an emoji icon for a requirement level.
func tmplLevelIcon(level string) string {
	switch strings.ToUpper(level) {
	case "MUST":
		return "🔴"
	case "SHOULD":
		return "🟠"
	case "MAY":
		return "🔵"
	default:
		return "⚪"
	}
}

// tmplToJSON converts a value to a JSON string.
func tmplToJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

// tmplPrettyJSON converts a value to a formatted JSON string.
func tmplPrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}
