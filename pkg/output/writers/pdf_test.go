package writers

import (
	"bytes"
	"testing"
	"time"

	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// makePDFTestResultEvent creates a test result event for PDF tests.
func makePDFTestResultEvent(name, category string, level events.Level, outcome events.Outcome, tags []string) *events.ResultEvent {
	message := ""
	if outcomeFails(outcome) {
		message = "response did not satisfy the negotiated revision"
	}
	return &events.ResultEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeResult,
			Time: time.Now(),
			Run:  "test-run-pdf-123",
		},
		Check: events.CheckInfo{
			Name:     name,
			Category: category,
			Level:    level,
			Revision: "2025-06-18",
			Tags:     tags,
		},
		Result: events.ResultInfo{
			Outcome:    outcome,
			DurationMs: 42.5,
			Message:    message,
		},
		Evidence: &events.Evidence{
			Method:   "tools/call",
			Request:  `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo","arguments":{"text":"conformance-probe"}}}`,
			Response: `{"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"conformance-probe"}]}}`,
		},
	}
}

// makePDFTestSummaryEvent creates a test summary event for PDF tests.
func makePDFTestSummaryEvent() *events.SummaryEvent {
	return &events.SummaryEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeSummary,
			Time: time.Now(),
			Run:  "test-run-pdf-123",
		},
		Version: "1.2.0",
		Target: events.SummaryTarget{
			Endpoint:   "http://127.0.0.1:3000/mcp",
			Transport:  "http",
			Revision:   "2025-06-18",
			ServerName: "reference-server",
		},
		Totals: events.SummaryTotals{
			Checks:   100,
			Passed:   90,
			Failed:   5,
			Skipped:  2,
			Timeouts: 2,
			Errors:   1,
		},
		Compliance: scoring.Compliance{
			Version:    "2025-06-18",
			Must:       scoring.LevelStats{Total: 60, Passed: 57},
			Should:     scoring.LevelStats{Total: 25, Passed: 22},
			May:        scoring.LevelStats{Total: 13, Passed: 11},
			Score:      91.5,
			Tier:       scoring.TierSubstantially,
			Applicable: true,
		},
		Breakdown: events.BreakdownInfo{
			ByCategory: map[string]events.CategoryStats{
				"core":  {Total: 40, Passed: 38, Failed: 2},
				"tools": {Total: 35, Passed: 32, Failed: 3},
			},
			ByLevel: map[string]events.CategoryStats{
				"MUST":   {Total: 60, Passed: 57, Failed: 3},
				"SHOULD": {Total: 25, Passed: 22, Failed: 3},
				"MAY":    {Total: 13, Passed: 11, Failed: 2},
			},
		},
		Failures: []events.FailureInfo{
			{Name: "initialize-version-echo", Category: "core", Level: events.LevelMust, Message: "server answered with protocol version 2024-11-05 after negotiating 2025-06-18"},
			{Name: "tools-call-unknown-tool", Category: "tools", Level: events.LevelShould, Message: "expected an isError result for an unknown tool name"},
		},
		Timing: events.SummaryTiming{
			StartedAt:   time.Now().Add(-5 * time.Minute),
			CompletedAt: time.Now(),
			DurationSec: 300.0,
		},
		ExitCode:   0,
		ExitReason: "completed",
	}
}

func TestPDFWriter_GeneratesValidPDF(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		Title:           "Test Conformance Report",
		CompanyName:     "Test Company",
		Author:          "Platform Team",
		IncludeEvidence: true,
		PageSize:        "A4",
		Orientation:     "P",
	})

	e := makePDFTestResultEvent("initialize-version-echo", "core", events.LevelMust, events.OutcomeFailed, []string{"lifecycle"})
	if err := w.Write(e); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	summary := makePDFTestSummaryEvent()
	if err := w.Write(summary); err != nil {
		t.Fatalf("write summary failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	output := buf.Bytes()

	// Check for PDF magic number
	if len(output) < 4 || string(output[:4]) != "%PDF" {
		t.Error("expected output to start with PDF magic number")
	}

	// Check for PDF end marker
	if !bytes.Contains(output, []byte("%%EOF")) {
		t.Error("expected output to contain PDF end marker")
	}

	// Check minimum size (a valid PDF with content should be reasonably sized)
	if len(output) < 1000 {
		t.Errorf("PDF output seems too small: %d bytes", len(output))
	}
}

func TestPDFWriter_DefaultConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{})

	// Should use default values
	if w.config.Title != "MCPConform Conformance Report" {
		t.Errorf("expected default title, got %q", w.config.Title)
	}
	if w.config.PageSize != "A4" {
		t.Errorf("expected default page size A4, got %q", w.config.PageSize)
	}
	if w.config.Orientation != "P" {
		t.Errorf("expected default orientation P, got %q", w.config.Orientation)
	}
}

func TestPDFWriter_SupportsEvent(t *testing.T) {
	w := NewPDFWriter(&bytes.Buffer{}, PDFConfig{})

	tests := []struct {
		eventType events.EventType
		expected  bool
	}{
		{events.EventTypeResult, true},
		{events.EventTypeSummary, true},
		{events.EventTypeStart, true},
		{events.EventTypeProgress, false},
		{events.EventTypeError, false},
		{events.EventTypeComplete, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			if got := w.SupportsEvent(tc.eventType); got != tc.expected {
				t.Errorf("SupportsEvent(%s) = %v, want %v", tc.eventType, got, tc.expected)
			}
		})
	}
}

func TestPDFWriter_LetterPageSize(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		PageSize:    "Letter",
		Orientation: "L",
	})

	e := makePDFTestResultEvent("tools-list-cursor", "tools", events.LevelShould, events.OutcomeFailed, nil)
	w.Write(e)
	w.Write(makePDFTestSummaryEvent())
	w.Close()

	output := buf.Bytes()

	// Verify it's still a valid PDF
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output")
	}
}

func TestPDFWriter_MultipleFindings(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		Title:           "Multi-Finding Report",
		IncludeEvidence: true,
	})

	// Add multiple results with different levels and categories
	checks := []struct {
		name     string
		category string
		level    events.Level
		outcome  events.Outcome
		tags     []string
	}{
		{"initialize-version-echo", "core", events.LevelMust, events.OutcomeFailed, []string{"lifecycle"}},
		{"initialize-capabilities", "core", events.LevelMust, events.OutcomeFailed, []string{"lifecycle"}},
		{"tools-list-cursor", "tools", events.LevelShould, events.OutcomeFailed, []string{"pagination"}},
		{"tools-call-echo", "tools", events.LevelMust, events.OutcomePassed, nil},
		{"operation-status-order", "async", events.LevelMust, events.OutcomeTimedOut, nil},
		{"ping-empty-result", "spec", events.LevelMay, events.OutcomePassed, nil},
	}

	for _, c := range checks {
		e := makePDFTestResultEvent(c.name, c.category, c.level, c.outcome, c.tags)
		if err := w.Write(e); err != nil {
			t.Fatalf("write failed for %s: %v", c.name, err)
		}
	}

	if err := w.Write(makePDFTestSummaryEvent()); err != nil {
		t.Fatalf("write summary failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	output := buf.Bytes()

	// Verify valid PDF
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output")
	}

	// PDF should be larger with more content
	if len(output) < 5000 {
		t.Errorf("PDF with multiple findings seems too small: %d bytes", len(output))
	}
}

func TestPDFWriter_NoFailingChecks(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		Title: "All Passing Report",
	})

	// Add only passing results
	e := makePDFTestResultEvent("tools-call-echo", "tools", events.LevelMust, events.OutcomePassed, nil)
	w.Write(e)
	w.Write(makePDFTestSummaryEvent())
	w.Close()

	output := buf.Bytes()

	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output")
	}
}

func TestPDFWriter_FlushIsNoOp(t *testing.T) {
	w := NewPDFWriter(&bytes.Buffer{}, PDFConfig{})

	// Flush should not error and should be a no-op
	if err := w.Flush(); err != nil {
		t.Errorf("Flush() returned error: %v", err)
	}
}

func TestPDFWriter_LevelColors(t *testing.T) {
	// Verify all requirement level colors are defined
	levels := []string{"MUST", "SHOULD", "MAY"}

	for _, level := range levels {
		color, ok := pdfLevelColors[level]
		if !ok {
			t.Errorf("missing level color for %q", level)
			continue
		}
		if len(color) != 3 {
			t.Errorf("level color for %q should have 3 components, got %d", level, len(color))
		}
		for i, c := range color {
			if c < 0 || c > 255 {
				t.Errorf("level color %q component %d out of range: %d", level, i, c)
			}
		}
	}
}

func TestPDFWriter_OutcomeColors(t *testing.T) {
	// Verify all outcome colors are defined
	outcomes := []events.Outcome{
		events.OutcomePassed,
		events.OutcomeFailed,
		events.OutcomeSkipped,
		events.OutcomeTimedOut,
		events.OutcomeErrored,
	}

	for _, outcome := range outcomes {
		color, ok := pdfOutcomeColors[outcome]
		if !ok {
			t.Errorf("missing outcome color for %q", outcome)
			continue
		}
		if len(color) != 3 {
			t.Errorf("outcome color for %q should have 3 components, got %d", outcome, len(color))
		}
	}
}

func TestPDFWriter_WithoutSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		Title: "No Summary Report",
	})

	// Add result without summary
	e := makePDFTestResultEvent("initialize-version-echo", "core", events.LevelMust, events.OutcomeFailed, nil)
	w.Write(e)

	// Should not panic without summary
	err := w.Close()
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	output := buf.Bytes()
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output even without summary")
	}
}

func TestPDFWriter_TruncateString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
	}

	for _, tc := range tests {
		result := truncateString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestPDFWriter_ConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{})

	// Concurrent writes should be safe
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			e := makePDFTestResultEvent(
				"concurrent-"+string(rune('0'+n)),
				"core",
				events.LevelShould,
				events.OutcomeFailed,
				nil,
			)
			w.Write(e)
			done <- true
		}(i)
	}

	// Wait for all writes
	for i := 0; i < 10; i++ {
		<-done
	}

	w.Write(makePDFTestSummaryEvent())
	err := w.Close()
	if err != nil {
		t.Fatalf("Close() failed after concurrent writes: %v", err)
	}

	output := buf.Bytes()
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output after concurrent writes")
	}
}

func TestPDFWriter_TierColors(t *testing.T) {
	tests := []struct {
		tier          string
		expectedGreen bool // greenish for the healthy tiers
	}{
		{scoring.TierFully, true},
		{scoring.TierSubstantially, true},
		{scoring.TierPartially, false},
		{scoring.TierMinimally, false},
		{scoring.TierNonCompliant, false},
		{"Unknown Tier", false},
	}

	for _, tc := range tests {
		color := getTierColor(tc.tier)
		if len(color) != 3 {
			t.Errorf("getTierColor(%q) should return 3-component color", tc.tier)
			continue
		}

		isGreenish := color[1] > color[0] && color[1] > color[2]
		if tc.expectedGreen && !isGreenish {
			t.Errorf("getTierColor(%q) should return greenish color for healthy tiers", tc.tier)
		}
	}
}

func TestPDFWriter_EvidenceExclusion(t *testing.T) {
	// IncludeEvidence false must survive construction untouched
	buf := &bytes.Buffer{}
	w := &PDFWriter{
		w:       buf,
		config:  PDFConfig{Title: "No Evidence Report", PageSize: "A4", Orientation: "P"},
		results: make([]*events.ResultEvent, 0),
	}

	e := makePDFTestResultEvent("initialize-version-echo", "core", events.LevelMust, events.OutcomeFailed, nil)
	w.Write(e)
	w.Write(makePDFTestSummaryEvent())
	w.Close()

	output := buf.Bytes()
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output")
	}
}

func TestPDFWriter_CompanyBranding(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{
		Title:       "Branded Report",
		CompanyName: "Acme Platform Corp",
		Author:      "Jordan Smith",
	})

	w.Write(makePDFTestSummaryEvent())
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	output := buf.Bytes()
	if string(output[:4]) != "%PDF" {
		t.Error("expected valid PDF output with branding")
	}

	// Verify the PDF is reasonably sized (branding adds content)
	if len(output) < 2000 {
		t.Errorf("PDF with branding seems too small: %d bytes", len(output))
	}
}

func TestPDFWriter_CategoryGrouping(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, PDFConfig{})

	// Add results from multiple categories
	categories := []string{"core", "tools", "async", "spec", "transport"}
	for i, cat := range categories {
		e := makePDFTestResultEvent(
			cat+"-check-1",
			cat,
			events.LevelMust,
			events.OutcomeFailed,
			nil,
		)
		w.results = append(w.results, e)

		// Add second result to some categories
		if i%2 == 0 {
			e2 := makePDFTestResultEvent(
				cat+"-check-2",
				cat,
				events.LevelShould,
				events.OutcomeFailed,
				nil,
			)
			w.results = append(w.results, e2)
		}
	}

	grouped := w.groupByCategory(w.results)

	// Verify grouping
	if len(grouped) != 5 {
		t.Errorf("expected 5 categories, got %d", len(grouped))
	}

	// core, async, transport should have 2 results each
	for _, cat := range []string{"core", "async", "transport"} {
		if len(grouped[cat]) != 2 {
			t.Errorf("expected 2 results in %s, got %d", cat, len(grouped[cat]))
		}
	}

	// tools, spec should have 1 result each
	for _, cat := range []string{"tools", "spec"} {
		if len(grouped[cat]) != 1 {
			t.Errorf("expected 1 result in %s, got %d", cat, len(grouped[cat]))
		}
	}
}

func TestPDFWriter_SpecAreaFor(t *testing.T) {
	tests := []struct {
		method   string
		expected string
	}{
		{"initialize", "Lifecycle"},
		{"notifications/initialized", "Lifecycle"},
		{"ping", "Utilities"},
		{"notifications/progress", "Utilities"},
		{"tools/list", "Tools"},
		{"tools/call", "Tools"},
		{"tools/call-async", "Async Operations"},
		{"tools/result", "Async Operations"},
		{"tools/cancel", "Async Operations"},
		{"resources/read", "Resources"},
		{"prompts/get", "Prompts"},
		{"tools/experimental", "Tools"},        // prefix fallback
		{"notifications/custom", "Utilities"},  // prefix fallback
		{"totally/unknown", "General"},
		{"unknown", "General"},
	}

	for _, tc := range tests {
		if got := specAreaFor(tc.method); got != tc.expected {
			t.Errorf("specAreaFor(%q) = %q, want %q", tc.method, got, tc.expected)
		}
	}
}

func TestPDFWriter_ErrorCodeName(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{-32700, "-32700 (Parse error)"},
		{-32601, "-32601 (Method not found)"},
		{-32602, "-32602 (Invalid params)"},
		{-32002, "-32002 (Resource not found)"},
		{-1, "-1"},
	}

	for _, tc := range tests {
		if got := errorCodeName(tc.code); got != tc.expected {
			t.Errorf("errorCodeName(%d) = %q, want %q", tc.code, got, tc.expected)
		}
	}
}

func TestPDFWriter_ResponseErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		code     int
		ok       bool
	}{
		{"error response", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`, -32601, true},
		{"result response", `{"jsonrpc":"2.0","id":1,"result":{}}`, 0, false},
		{"malformed", `{not json`, 0, false},
		{"empty", ``, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, ok := responseErrorCode(tc.response)
			if ok != tc.ok || code != tc.code {
				t.Errorf("responseErrorCode(%q) = (%d, %v), want (%d, %v)", tc.response, code, ok, tc.code, tc.ok)
			}
		})
	}
}

func TestPDFWriter_CategoryGuidanceFor(t *testing.T) {
	info := categoryGuidanceFor("tools")
	if info.Title != "Tools" {
		t.Errorf("Title = %q, want Tools", info.Title)
	}
	if info.ReferenceURL == "" {
		t.Error("expected a reference URL for a known category")
	}

	// Unknown categories fall back to a capitalized title and generic text
	fallback := categoryGuidanceFor("widgets")
	if fallback.Title != "Widgets" {
		t.Errorf("fallback Title = %q, want Widgets", fallback.Title)
	}
	if fallback.Guidance == "" || fallback.ReferenceURL == "" {
		t.Error("fallback guidance should still carry text and a reference")
	}
}
