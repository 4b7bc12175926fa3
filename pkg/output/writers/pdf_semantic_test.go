package writers

import (
	"bytes"
	"testing"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// pdfResult wraps generated PDF bytes for semantic assertions. Text
// assertions only work because generatePDF disables stream compression.
type pdfResult struct {
	raw []byte
}

func (p pdfResult) assertValid(t *testing.T) {
	t.Helper()
	if err := pdfapi.Validate(bytes.NewReader(p.raw), nil); err != nil {
		t.Fatalf("generated PDF failed validation: %v", err)
	}
}

func (p pdfResult) pageCount(t *testing.T) int {
	t.Helper()
	n, err := pdfapi.PageCount(bytes.NewReader(p.raw), nil)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	return n
}

func (p pdfResult) assertPageCount(t *testing.T, want int) {
	t.Helper()
	if got := p.pageCount(t); got != want {
		t.Errorf("page count = %d, want %d", got, want)
	}
}

func (p pdfResult) assertPageCountAtLeast(t *testing.T, min int) {
	t.Helper()
	if got := p.pageCount(t); got < min {
		t.Errorf("page count = %d, want at least %d", got, min)
	}
}

// assertContainsText checks the raw content streams for a substring.
// Keep substrings short and paren-free: fpdf escapes parentheses and
// wraps MultiCell text at word boundaries.
func (p pdfResult) assertContainsText(t *testing.T, sub string) {
	t.Helper()
	if !bytes.Contains(p.raw, []byte(sub)) {
		t.Errorf("PDF does not contain %q", sub)
	}
}

func (p pdfResult) assertNotContainsText(t *testing.T, sub string) {
	t.Helper()
	if bytes.Contains(p.raw, []byte(sub)) {
		t.Errorf("PDF should not contain %q", sub)
	}
}

func (p pdfResult) textOccurrences(sub string) int {
	return bytes.Count(p.raw, []byte(sub))
}

func (p pdfResult) assertMinSize(t *testing.T, n int) {
	t.Helper()
	if len(p.raw) < n {
		t.Errorf("PDF size = %d bytes, want at least %d", len(p.raw), n)
	}
}

// generatePDF renders a report from the given events and returns the raw
// bytes. Compression is disabled so the text survives into the output.
func generatePDF(t *testing.T, cfg PDFConfig, results []*events.ResultEvent, summary *events.SummaryEvent) pdfResult {
	t.Helper()
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, cfg)
	w.noCompress = true
	for _, r := range results {
		if err := w.Write(r); err != nil {
			t.Fatalf("write result: %v", err)
		}
	}
	if summary != nil {
		if err := w.Write(summary); err != nil {
			t.Fatalf("write summary: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return pdfResult{raw: buf.Bytes()}
}

// generatePDFWithStart additionally feeds a start event, the way the
// dispatcher does for writers that support it.
func generatePDFWithStart(t *testing.T, cfg PDFConfig, start *events.StartEvent, results []*events.ResultEvent, summary *events.SummaryEvent) pdfResult {
	t.Helper()
	buf := &bytes.Buffer{}
	w := NewPDFWriter(buf, cfg)
	w.noCompress = true
	if start != nil {
		if err := w.Write(start); err != nil {
			t.Fatalf("write start: %v", err)
		}
	}
	for _, r := range results {
		if err := w.Write(r); err != nil {
			t.Fatalf("write result: %v", err)
		}
	}
	if summary != nil {
		if err := w.Write(summary); err != nil {
			t.Fatalf("write summary: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return pdfResult{raw: buf.Bytes()}
}

func failingCheck(name, category string, level events.Level) *events.ResultEvent {
	return makePDFTestResultEvent(name, category, level, events.OutcomeFailed, nil)
}

func passingCheck(name, category string, level events.Level) *events.ResultEvent {
	return makePDFTestResultEvent(name, category, level, events.OutcomePassed, nil)
}

func TestPDFSemantic_ValidDocument(t *testing.T) {
	res := generatePDF(t, PDFConfig{IncludeEvidence: true, IncludeTOC: true},
		[]*events.ResultEvent{
			failingCheck("initialize-version-echo", "core", events.LevelMust),
			passingCheck("tools-call-echo", "tools", events.LevelMust),
		},
		makePDFTestSummaryEvent())

	res.assertValid(t)
	res.assertMinSize(t, 5000)
}

func TestPDFSemantic_PageCount_TOCAddsOnePage(t *testing.T) {
	results := []*events.ResultEvent{failingCheck("initialize-version-echo", "core", events.LevelMust)}

	withTOC := generatePDF(t, PDFConfig{IncludeTOC: true}, results, makePDFTestSummaryEvent())
	withoutTOC := generatePDF(t, PDFConfig{}, results, makePDFTestSummaryEvent())

	withTOC.assertValid(t)
	withTOC.assertPageCountAtLeast(t, 13)
	if got, want := withTOC.pageCount(t), withoutTOC.pageCount(t)+1; got != want {
		t.Errorf("TOC should add exactly one page: with=%d without=%d", got, withoutTOC.pageCount(t))
	}
}

func TestPDFSemantic_PageCount_ScalesWithCategories(t *testing.T) {
	two := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		failingCheck("core-check", "core", events.LevelMust),
		failingCheck("tools-check", "tools", events.LevelShould),
	}, nil)
	four := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		failingCheck("core-check", "core", events.LevelMust),
		failingCheck("tools-check", "tools", events.LevelShould),
		failingCheck("async-check", "async", events.LevelMust),
		failingCheck("spec-check", "spec", events.LevelMay),
	}, nil)

	if four.pageCount(t) <= two.pageCount(t) {
		t.Errorf("more failing categories should add pages: two=%d four=%d",
			two.pageCount(t), four.pageCount(t))
	}
}

func TestPDFSemantic_PageCount_CleanRunIsShorter(t *testing.T) {
	clean := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		passingCheck("core-check-1", "core", events.LevelMust),
		passingCheck("core-check-2", "core", events.LevelShould),
		passingCheck("tools-check-1", "tools", events.LevelMust),
		passingCheck("tools-check-2", "tools", events.LevelMay),
	}, makePDFTestSummaryEvent())
	failing := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		failingCheck("core-check-1", "core", events.LevelMust),
		failingCheck("core-check-2", "core", events.LevelShould),
		failingCheck("tools-check-1", "tools", events.LevelMust),
		failingCheck("tools-check-2", "tools", events.LevelMay),
	}, makePDFTestSummaryEvent())

	if clean.pageCount(t) >= failing.pageCount(t) {
		t.Errorf("clean run should produce the shorter report: clean=%d failing=%d",
			clean.pageCount(t), failing.pageCount(t))
	}
}

func TestPDFSemantic_SectionHeaders(t *testing.T) {
	res := generatePDF(t, PDFConfig{IncludeTOC: true},
		[]*events.ResultEvent{failingCheck("initialize-version-echo", "core", events.LevelMust)},
		makePDFTestSummaryEvent())

	res.assertContainsText(t, "Table of Contents")
	res.assertContainsText(t, "Executive Summary")
	res.assertContainsText(t, "Protocol Area Coverage")
	res.assertContainsText(t, "Findings: CORE")
	res.assertContainsText(t, "Appendix: Run Configuration")
	res.assertContainsText(t, "Appendix: Testing Methodology")
}

func TestPDFSemantic_CoverPage(t *testing.T) {
	res := generatePDF(t, PDFConfig{
		Title:          "Acme Conformance Audit",
		CompanyName:    "Acme Corp",
		Author:         "Platform Team",
		Classification: "CONFIDENTIAL",
	}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Acme Conformance Audit")
	res.assertContainsText(t, "Model Context Protocol Conformance Assessment")
	res.assertContainsText(t, "Prepared for")
	res.assertContainsText(t, "Acme Corp")
	res.assertContainsText(t, "Platform Team")
	res.assertContainsText(t, "CONFIDENTIAL")
	res.assertContainsText(t, "http://127.0.0.1:3000/mcp")
	res.assertContainsText(t, "reference-server")
}

func TestPDFSemantic_CoverTierBox(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Compliance.Tier = scoring.TierPartially
	summary.Compliance.Score = 82.3

	res := generatePDF(t, PDFConfig{}, nil, summary)

	res.assertContainsText(t, "Score: 82.3%")
	// Cover box and insight, beyond the one row every methodology table has.
	if n := res.textOccurrences("Partially Compliant"); n < 2 {
		t.Errorf("tier name occurrences = %d, want at least 2", n)
	}
}

func TestPDFSemantic_PostureSentence(t *testing.T) {
	// Default summary scores 91.5, the "broadly interoperable" band.
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	res.assertContainsText(t, "interoperable")
}

func TestPDFSemantic_FindingCard(t *testing.T) {
	r := makePDFTestResultEvent("initialize-version-echo", "core", events.LevelMust, events.OutcomeFailed, []string{"lifecycle", "handshake"})
	res := generatePDF(t, PDFConfig{}, []*events.ResultEvent{r}, nil)

	res.assertContainsText(t, "initialize-version-echo")
	res.assertContainsText(t, "FAILED")
	res.assertContainsText(t, "Category: core")
	res.assertContainsText(t, "Revision: 2025-06-18")
	res.assertContainsText(t, "Area: Tools")
	res.assertContainsText(t, "Tags: lifecycle, handshake")
	res.assertContainsText(t, "response did not satisfy the negotiated revision")
}

func TestPDFSemantic_EvidenceOptIn(t *testing.T) {
	results := []*events.ResultEvent{failingCheck("tools-call-echo-roundtrip", "tools", events.LevelMust)}

	with := generatePDF(t, PDFConfig{IncludeEvidence: true}, results, nil)
	with.assertContainsText(t, "Request")
	with.assertContainsText(t, "conformance-probe")

	without := generatePDF(t, PDFConfig{}, results, nil)
	without.assertNotContainsText(t, "conformance-probe")
}

func TestPDFSemantic_EvidenceErrorCodeAnnotated(t *testing.T) {
	r := failingCheck("tools-call-unknown-tool", "tools", events.LevelMust)
	r.Evidence.Response = `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"Method not found"}}`

	res := generatePDF(t, PDFConfig{IncludeEvidence: true}, []*events.ResultEvent{r}, nil)

	res.assertContainsText(t, "Server error: -32601")
	res.assertContainsText(t, "Method not found")
}

func TestPDFSemantic_AreaCoverageTable(t *testing.T) {
	lifecycle := failingCheck("initialize-version-echo", "core", events.LevelMust)
	lifecycle.Evidence.Method = "initialize"
	tools := passingCheck("tools-call-echo", "tools", events.LevelMust)

	res := generatePDF(t, PDFConfig{}, []*events.ResultEvent{lifecycle, tools}, nil)

	res.assertContainsText(t, "Specification Area")
	res.assertContainsText(t, "Lifecycle")
	res.assertContainsText(t, "Async Operations")
	res.assertContainsText(t, "Prompts")
	// Areas no check exercised are reported, not omitted.
	res.assertContainsText(t, "NOT TESTED")
}

func TestPDFSemantic_LevelBreakdownTable(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Results by Requirement Level")
	res.assertContainsText(t, "MUST")
	res.assertContainsText(t, "SHOULD")
	res.assertContainsText(t, "MAY")
}

func TestPDFSemantic_Watermark(t *testing.T) {
	marked := generatePDF(t, PDFConfig{WatermarkText: "DRAFT REPORT"}, nil, makePDFTestSummaryEvent())
	marked.assertContainsText(t, "DRAFT REPORT")

	plain := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	plain.assertNotContainsText(t, "DRAFT REPORT")
}

func TestPDFSemantic_Footer(t *testing.T) {
	def := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	def.assertContainsText(t, "Generated by MCPConform")

	custom := generatePDF(t, PDFConfig{FooterText: "Acme Internal Audit Trail"}, nil, makePDFTestSummaryEvent())
	custom.assertContainsText(t, "Acme Internal Audit Trail")
	custom.assertNotContainsText(t, "Generated by MCPConform")
}

func TestPDFSemantic_EmptyRun(t *testing.T) {
	res := generatePDF(t, PDFConfig{IncludeTOC: true}, nil, nil)

	res.assertValid(t)
	res.assertPageCount(t, 8)
	res.assertContainsText(t, "No summary data available.")
	res.assertContainsText(t, "No failing checks detected.")
	res.assertContainsText(t, "No notable insights for this run.")
	res.assertContainsText(t, "No run configuration recorded.")
	res.assertNotContainsText(t, "Score:")
}

func TestPDFSemantic_TopFailuresTable(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Top Failing Checks")
	res.assertContainsText(t, "initialize-version-echo")
	res.assertContainsText(t, "tools-call-unknown-tool")
	res.assertContainsText(t, "server answered with protocol")
}

func TestPDFSemantic_TopFailuresCapped(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Failures = nil
	for i := 0; i < 20; i++ {
		summary.Failures = append(summary.Failures, events.FailureInfo{
			Name:     "check-" + string(rune('a'+i)),
			Category: "core",
			Level:    events.LevelMust,
			Message:  "failing",
		})
	}

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertContainsText(t, "more failing checks")
}

func TestPDFSemantic_TopFailuresSkippedWhenEmpty(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Failures = nil

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertNotContainsText(t, "Top Failing Checks")
}

func TestPDFSemantic_CategoryBreakdownTable(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Category Breakdown")
	res.assertContainsText(t, "Pass Rate by Category")
	res.assertContainsText(t, "CORE")
	res.assertContainsText(t, "95.0%")
	res.assertContainsText(t, "91.4%")
	res.assertContainsText(t, "LOW")
}

func TestPDFSemantic_CategoryRiskLabels(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Breakdown.ByCategory = map[string]events.CategoryStats{
		"core":  {Total: 20, Passed: 15, Failed: 5}, // 75% pass
		"tools": {Total: 10, Passed: 4, Failed: 6},  // 40% pass
		"async": {Total: 4, Skipped: 4},             // nothing counted
	}

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertContainsText(t, "MEDIUM")
	res.assertContainsText(t, "HIGH")
	res.assertContainsText(t, "NONE")
	res.assertContainsText(t, "n/a")
}

func TestPDFSemantic_DurationProfile(t *testing.T) {
	durations := []float64{10, 20, 40, 80, 1500}
	results := make([]*events.ResultEvent, 0, len(durations))
	for i, d := range durations {
		r := passingCheck("check-"+string(rune('a'+i)), "core", events.LevelMust)
		r.Result.DurationMs = d
		results = append(results, r)
	}

	res := generatePDF(t, PDFConfig{}, results, nil)

	res.assertContainsText(t, "Check Duration Profile")
	res.assertContainsText(t, "P95")
	res.assertContainsText(t, "Slowest Checks")
	res.assertContainsText(t, "1500 ms")
}

func TestPDFSemantic_DurationProfileSkippedWithoutResults(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	res.assertNotContainsText(t, "Check Duration Profile")
}

func TestPDFSemantic_RunConfigFromSummary(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Appendix: Run Configuration")
	res.assertContainsText(t, "Executed Checks")
	res.assertContainsText(t, "Exit Reason")
	res.assertContainsText(t, "completed")
}

func TestPDFSemantic_RunConfigFromStartEvent(t *testing.T) {
	start := &events.StartEvent{
		BaseEvent:  events.BaseEvent{Type: events.EventTypeStart, Time: time.Now(), Run: "test-run-pdf-123"},
		Target:     "stdio:./reference-server",
		Transport:  "stdio",
		Revision:   "2025-03-26",
		ServerName: "reference-server",
		Config: events.RunConfig{
			Timeout:    30,
			Categories: []string{"core", "tools"},
			Strict:     true,
			ThrottleMs: 250,
		},
		Categories:  []string{"core", "tools"},
		TotalChecks: 42,
	}

	res := generatePDFWithStart(t, PDFConfig{}, start, nil, nil)

	res.assertContainsText(t, "stdio:./reference-server")
	res.assertContainsText(t, "core, tools")
	res.assertContainsText(t, "Planned Checks")
	res.assertContainsText(t, "Check Timeout")
	res.assertContainsText(t, "30s")
	res.assertContainsText(t, "Throttle")
	res.assertContainsText(t, "250ms")
	res.assertContainsText(t, "Strict Mode")
	res.assertContainsText(t, "enabled")
}

func TestPDFSemantic_RunConfigOmitsZeroSettings(t *testing.T) {
	start := &events.StartEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeStart, Time: time.Now(), Run: "test-run-pdf-123"},
		Target:    "http://127.0.0.1:3000/mcp",
		Transport: "http",
		Revision:  "2025-06-18",
	}
	summary := makePDFTestSummaryEvent()
	summary.Timing.DurationSec = 125 // renders as "2m 5s"

	res := generatePDFWithStart(t, PDFConfig{}, start, nil, summary)

	res.assertContainsText(t, "2m 5s")
	res.assertNotContainsText(t, "Check Timeout")
	res.assertNotContainsText(t, "Throttle")
	res.assertNotContainsText(t, "Strict Mode")
	// An unset timeout must not surface anywhere as a zero duration.
	res.assertNotContainsText(t, "0s")
}

func TestPDFSemantic_Methodology(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "1. CHECK EXECUTION")
	res.assertContainsText(t, "2. RESPONSE VALIDATION")
	res.assertContainsText(t, "3. COMPLIANCE SCORING")
	res.assertContainsText(t, "4. LEVEL CLASSIFICATION")
	res.assertContainsText(t, "MUST x10")
	res.assertContainsText(t, "2119")
	res.assertContainsText(t, "Scoring Tiers")
	res.assertContainsText(t, "Fully Compliant")
	res.assertContainsText(t, "below 50%")
}

func TestPDFSemantic_RevisionNote(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Negotiated Revision: 2025-06-18")
	res.assertContainsText(t, "structured tool output")
}

func TestPDFSemantic_RevisionNoteSkippedWhenUnknown(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Target.Revision = "draft-next"

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertNotContainsText(t, "Negotiated Revision:")
}

func TestPDFSemantic_LevelOutcomeMatrix(t *testing.T) {
	results := []*events.ResultEvent{
		failingCheck("core-check-1", "core", events.LevelMust),
		failingCheck("core-check-2", "core", events.LevelMust),
		passingCheck("tools-check", "tools", events.LevelShould),
		makePDFTestResultEvent("async-check", "async", events.LevelMay, events.OutcomeTimedOut, nil),
	}

	res := generatePDF(t, PDFConfig{}, results, nil)

	res.assertContainsText(t, "Level vs Outcome Matrix")
	res.assertContainsText(t, "TimedOut")
	res.assertContainsText(t, "Total")
}

func TestPDFSemantic_LevelOutcomeMatrixSkippedWhenClean(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		passingCheck("tools-check", "tools", events.LevelMust),
	}, nil)

	res.assertNotContainsText(t, "Level vs Outcome Matrix")
}

func TestPDFSemantic_PassingCategories(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Breakdown.ByCategory["async"] = events.CategoryStats{Total: 20, Passed: 18, Skipped: 2}

	res := generatePDF(t, PDFConfig{}, nil, summary)

	res.assertContainsText(t, "Passing Categories")
	res.assertContainsText(t, "ASYNC")
	res.assertContainsText(t, "100.0%")
	res.assertContainsText(t, "tested categories passed every check.")
}

func TestPDFSemantic_PassingCategoriesSkippedWhenNoneClean(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	res.assertNotContainsText(t, "Passing Categories")
}

func TestPDFSemantic_RemediationGuidance(t *testing.T) {
	results := []*events.ResultEvent{
		failingCheck("initialize-version-echo", "core", events.LevelMust),
		failingCheck("initialize-capabilities", "core", events.LevelMust),
		failingCheck("tools-list-cursor", "tools", events.LevelShould),
	}

	res := generatePDF(t, PDFConfig{}, results, nil)

	res.assertContainsText(t, "Remediation Guidance")
	res.assertContainsText(t, "Core Protocol")
	res.assertContainsText(t, "failing checks")
	res.assertContainsText(t, "initialize handshake")
	res.assertContainsText(t, "pagination cursors")
	res.assertContainsText(t, "modelcontextprotocol.io/specification")

	// Worst category first: core has two failures, tools one.
	coreIdx := bytes.Index(res.raw, []byte("initialize handshake"))
	toolsIdx := bytes.Index(res.raw, []byte("pagination cursors"))
	if coreIdx < 0 || toolsIdx < 0 || coreIdx > toolsIdx {
		t.Errorf("expected core guidance before tools guidance: core=%d tools=%d", coreIdx, toolsIdx)
	}
}

func TestPDFSemantic_RemediationSkippedWhenClean(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, []*events.ResultEvent{
		passingCheck("tools-check", "tools", events.LevelMust),
	}, nil)

	res.assertNotContainsText(t, "Remediation Guidance")
}

func TestPDFSemantic_RunInsights(t *testing.T) {
	res := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())

	res.assertContainsText(t, "Run Insights")
	res.assertContainsText(t, "[SRV]")
	res.assertContainsText(t, "Server Identity")
	res.assertContainsText(t, "Compliance Posture")
	// Default summary reports two timeouts.
	res.assertContainsText(t, "Timeout Pressure")
	res.assertContainsText(t, "Run Performance")
	res.assertContainsText(t, "checks/s")
}

func TestPDFSemantic_ErrorProneCategoryInsight(t *testing.T) {
	results := []*events.ResultEvent{
		makePDFTestResultEvent("transport-check-1", "transport", events.LevelMust, events.OutcomeErrored, nil),
		makePDFTestResultEvent("transport-check-2", "transport", events.LevelMust, events.OutcomeErrored, nil),
		makePDFTestResultEvent("transport-check-3", "transport", events.LevelShould, events.OutcomeErrored, nil),
	}

	res := generatePDF(t, PDFConfig{}, results, nil)

	res.assertContainsText(t, "Error-Prone Category")
	res.assertContainsText(t, "produced 3 harness errors")
}

func TestPDFSemantic_CoverDurationFormats(t *testing.T) {
	long := makePDFTestSummaryEvent()
	long.Timing.DurationSec = 3723
	generatePDF(t, PDFConfig{}, nil, long).assertContainsText(t, "1h 2m 3s")

	short := makePDFTestSummaryEvent()
	short.Timing.DurationSec = 45.3
	generatePDF(t, PDFConfig{}, nil, short).assertContainsText(t, "45.3s")
}

func TestPDFSemantic_CoverThroughput(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Timing.DurationSec = 4.0
	summary.Totals.Checks = 100

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertContainsText(t, "Throughput")
	res.assertContainsText(t, "25.0 checks/s")
}

func TestPDF_FormatDuration(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0.0s"},
		{1.5, "1.5s"},
		{59.9, "59.9s"},
		{60, "1m 0s"},
		{125, "2m 5s"},
		{3599, "59m 59s"},
		{3600, "1h 0m 0s"},
		{3723, "1h 2m 3s"},
		{7325, "2h 2m 5s"},
	}

	for _, tc := range tests {
		if got := formatDuration(tc.seconds); got != tc.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.seconds, got, tc.expected)
		}
	}
}

func TestPDFSemantic_TOCMatchesRenderedSections(t *testing.T) {
	res := generatePDF(t, PDFConfig{IncludeTOC: true},
		[]*events.ResultEvent{failingCheck("tools-list-cursor", "tools", events.LevelShould)},
		makePDFTestSummaryEvent())

	// Each rendered section title appears in the TOC and as a header.
	for _, title := range []string{
		"Executive Summary",
		"Top Failing Checks",
		"Category Breakdown",
		"Protocol Area Coverage",
		"Findings: TOOLS",
		"Appendix: Testing Methodology",
	} {
		if n := res.textOccurrences(title); n < 2 {
			t.Errorf("section title %q occurrences = %d, want at least 2", title, n)
		}
	}
}

func TestPDFSemantic_Classification(t *testing.T) {
	for _, label := range []string{"CONFIDENTIAL", "INTERNAL", "PUBLIC"} {
		t.Run(label, func(t *testing.T) {
			res := generatePDF(t, PDFConfig{Classification: label}, nil, makePDFTestSummaryEvent())
			res.assertContainsText(t, label)
		})
	}

	plain := generatePDF(t, PDFConfig{}, nil, makePDFTestSummaryEvent())
	plain.assertNotContainsText(t, "CONFIDENTIAL")
}

func TestPDFSemantic_LetterLandscape(t *testing.T) {
	res := generatePDF(t, PDFConfig{PageSize: "Letter", Orientation: "L", IncludeTOC: true},
		[]*events.ResultEvent{failingCheck("initialize-version-echo", "core", events.LevelMust)},
		makePDFTestSummaryEvent())

	res.assertValid(t)
	res.assertPageCountAtLeast(t, 13)
}

func TestPDFSemantic_ManyFindingsOverflow(t *testing.T) {
	results := make([]*events.ResultEvent, 0, 30)
	for i := 0; i < 30; i++ {
		results = append(results, failingCheck("tools-check-"+string(rune('a'+i)), "tools", events.LevelMust))
	}

	res := generatePDF(t, PDFConfig{IncludeEvidence: true}, results, nil)

	res.assertValid(t)
	res.assertPageCountAtLeast(t, 14)
}

func TestPDFSemantic_SummaryTotalsTable(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Totals = events.SummaryTotals{Checks: 250, Passed: 230, Failed: 15, Skipped: 3, Timeouts: 1, Errors: 1}

	res := generatePDF(t, PDFConfig{}, nil, summary)

	res.assertContainsText(t, "Total Checks")
	res.assertContainsText(t, "Timeouts")
	res.assertContainsText(t, "250")
	res.assertContainsText(t, "230")
}

func TestPDFSemantic_StartedTimestamp(t *testing.T) {
	summary := makePDFTestSummaryEvent()
	summary.Timing.StartedAt = time.Date(2026, 2, 15, 14, 30, 0, 0, time.UTC)

	res := generatePDF(t, PDFConfig{}, nil, summary)
	res.assertContainsText(t, "2026-02-15")
}
