package writers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// Compile-time check that PDFWriter implements the Writer interface
var _ dispatcher.Writer = (*PDFWriter)(nil)

// PDFConfig configures PDF report generation.
type PDFConfig struct {
	// Title is the report title on the cover page.
	Title string
	// CompanyName is an optional "prepared for" line on the cover.
	CompanyName string
	// Author is recorded in the document metadata and on the cover.
	Author string
	// Classification is an optional handling label (e.g. INTERNAL)
	// rendered as a badge on the cover page.
	Classification string
	// WatermarkText draws a diagonal watermark across every page.
	WatermarkText string
	// FooterText overrides the default footer line.
	FooterText string
	// IncludeEvidence embeds wire exchanges in finding cards.
	IncludeEvidence bool
	// IncludeTOC adds a table of contents page after the cover.
	IncludeTOC bool
	// PageSize is "A4" or "Letter". Defaults to A4.
	PageSize string
	// Orientation is "P" (portrait) or "L" (landscape). Defaults to P.
	Orientation string
}

// PDFWriter generates a PDF conformance report. Events are buffered and
// the document is rendered once on Close.
type PDFWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  PDFConfig
	results []*events.ResultEvent
	summary *events.SummaryEvent
	start   *events.StartEvent

	// noCompress disables content stream compression so tests can assert
	// on the text inside the raw PDF bytes.
	noCompress bool
}

// NewPDFWriter creates a PDF report writer with config defaults applied.
// IncludeEvidence is honored as given: wire exchanges can carry payloads
// a report recipient should not see, so evidence is strictly opt-in.
func NewPDFWriter(w io.Writer, config PDFConfig) *PDFWriter {
	if config.Title == "" {
		config.Title = defaults.ToolNameDisplay + " Conformance Report"
	}
	if config.PageSize == "" {
		config.PageSize = "A4"
	}
	if config.Orientation == "" {
		config.Orientation = "P"
	}
	return &PDFWriter{
		w:       w,
		config:  config,
		results: make([]*events.ResultEvent, 0),
	}
}

// Write buffers an event for the final document.
func (pw *PDFWriter) Write(event events.Event) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		pw.start = e
	case *events.ResultEvent:
		pw.results = append(pw.results, e)
	case *events.SummaryEvent:
		pw.summary = e
	}
	return nil
}

// Flush is a no-op; the document is rendered on Close.
func (pw *PDFWriter) Flush() error {
	return nil
}

// Close renders the PDF and writes it to the underlying writer.
func (pw *PDFWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pdf := pw.render()
	if err := pdf.Output(pw.w); err != nil {
		return fmt.Errorf("failed to render PDF report: %w", err)
	}
	if closer, ok := pw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for start, result, and summary events. The
// start event feeds the run configuration appendix.
func (pw *PDFWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeResult, events.EventTypeSummary:
		return true
	default:
		return false
	}
}

// pdfLevelColors maps requirement levels to RGB fill colors, matching the
// palette used by the HTML report.
var pdfLevelColors = map[string][]int{
	"MUST":   {220, 53, 69},
	"SHOULD": {253, 126, 20},
	"MAY":    {13, 202, 240},
}

// pdfOutcomeColors maps check outcomes to RGB fill colors.
var pdfOutcomeColors = map[events.Outcome][]int{
	events.OutcomePassed:   {25, 135, 84},
	events.OutcomeFailed:   {220, 53, 69},
	events.OutcomeSkipped:  {13, 202, 240},
	events.OutcomeTimedOut: {253, 126, 20},
	events.OutcomeErrored:  {108, 117, 125},
}

// getTierColor returns the RGB color for a compliance tier.
func getTierColor(tier string) []int {
	switch tier {
	case scoring.TierFully:
		return []int{25, 135, 84}
	case scoring.TierSubstantially:
		return []int{101, 163, 13}
	case scoring.TierPartially:
		return []int{202, 138, 4}
	case scoring.TierMinimally:
		return []int{234, 88, 12}
	case scoring.TierNonCompliant:
		return []int{220, 53, 69}
	default:
		return []int{108, 117, 125}
	}
}

// levelColor returns the fill color for a requirement level, gray for
// unknown levels.
func levelColor(level events.Level) []int {
	if c, ok := pdfLevelColors[strings.ToUpper(string(level))]; ok {
		return c
	}
	return []int{108, 117, 125}
}

// groupByCategory groups results by their check category.
func (pw *PDFWriter) groupByCategory(results []*events.ResultEvent) map[string][]*events.ResultEvent {
	grouped := make(map[string][]*events.ResultEvent)
	for _, r := range results {
		grouped[r.Check.Category] = append(grouped[r.Check.Category], r)
	}
	return grouped
}

// failingByCategory groups only the failing results (failed, timed out,
// errored) by category.
func (pw *PDFWriter) failingByCategory() map[string][]*events.ResultEvent {
	grouped := make(map[string][]*events.ResultEvent)
	for _, r := range pw.results {
		if outcomeFails(r.Result.Outcome) {
			grouped[r.Check.Category] = append(grouped[r.Check.Category], r)
		}
	}
	return grouped
}

// hasFailingResults reports whether any buffered result failed.
func (pw *PDFWriter) hasFailingResults() bool {
	for _, r := range pw.results {
		if outcomeFails(r.Result.Outcome) {
			return true
		}
	}
	return false
}

// compliance returns the summary compliance when present, otherwise one
// computed from the buffered results.
func (pw *PDFWriter) compliance() scoring.Compliance {
	if pw.summary != nil {
		return pw.summary.Compliance
	}
	inputs := make([]scoring.Input, 0, len(pw.results))
	for _, r := range pw.results {
		inputs = append(inputs, scoring.Input{Level: r.Check.Level, Outcome: r.Result.Outcome})
	}
	return scoring.Calculate(inputs, "")
}

// totals returns the summary totals when present, otherwise counts
// computed from the buffered results.
func (pw *PDFWriter) totals() events.SummaryTotals {
	if pw.summary != nil {
		return pw.summary.Totals
	}
	var t events.SummaryTotals
	for _, r := range pw.results {
		t.Checks++
		switch r.Result.Outcome {
		case events.OutcomePassed:
			t.Passed++
		case events.OutcomeFailed:
			t.Failed++
		case events.OutcomeSkipped:
			t.Skipped++
		case events.OutcomeTimedOut:
			t.Timeouts++
		case events.OutcomeErrored:
			t.Errors++
		}
	}
	return t
}

// formatDuration renders seconds as a compact human duration.
func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	total := int(seconds)
	if total < 3600 {
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	}
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}

// responseErrorCode extracts the JSON-RPC error code from a raw response,
// if the response is an error.
func responseErrorCode(raw string) (int, bool) {
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := jsonutil.Unmarshal([]byte(raw), &resp); err != nil || resp.Error == nil {
		return 0, false
	}
	return resp.Error.Code, true
}

// pdfSection pairs a table of contents title with its render function.
// The section list is built once so the TOC always matches the body.
type pdfSection struct {
	title  string
	render func(pdf *gofpdf.Fpdf, title string)
}

// sections returns the report sections in render order. Data-dependent
// sections are omitted when they would be empty.
func (pw *PDFWriter) sections() []pdfSection {
	secs := []pdfSection{
		{"Executive Summary", pw.addExecutiveSummary},
	}

	if pw.summary != nil && len(pw.summary.Failures) > 0 {
		secs = append(secs, pdfSection{"Top Failing Checks", pw.addTopFailures})
	}
	if pw.summary != nil && len(pw.summary.Breakdown.ByCategory) > 0 {
		secs = append(secs, pdfSection{"Category Breakdown", pw.addCategoryBreakdown})
	}

	secs = append(secs, pdfSection{"Protocol Area Coverage", pw.addSpecAreaCoverage})

	if pw.hasFailingResults() {
		secs = append(secs, pdfSection{"Level vs Outcome Matrix", pw.addLevelOutcomeMatrix})
	}
	if pw.hasPassingCategories() {
		secs = append(secs, pdfSection{"Passing Categories", pw.addPassingCategories})
	}
	if len(pw.results) > 0 {
		secs = append(secs, pdfSection{"Check Duration Profile", pw.addDurationProfile})
	}

	secs = append(secs, pdfSection{"Run Insights", pw.addRunInsights})

	failing := pw.failingByCategory()
	if len(failing) == 0 {
		secs = append(secs, pdfSection{"Detailed Findings", pw.addNoFindings})
	} else {
		cats := make([]string, 0, len(failing))
		for cat := range failing {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			group := failing[cat]
			secs = append(secs, pdfSection{
				title: "Findings: " + strings.ToUpper(cat),
				render: func(pdf *gofpdf.Fpdf, title string) {
					pw.addCategoryFindings(pdf, title, group)
				},
			})
		}
		secs = append(secs, pdfSection{"Remediation Guidance", pw.addRemediationGuidance})
	}

	secs = append(secs,
		pdfSection{"Appendix: Run Configuration", pw.addRunConfiguration},
		pdfSection{"Appendix: Testing Methodology", pw.addMethodology},
	)
	return secs
}

// render builds the complete document.
func (pw *PDFWriter) render() *gofpdf.Fpdf {
	pdf := gofpdf.New(pw.config.Orientation, "mm", pw.config.PageSize, "")
	if pw.noCompress {
		pdf.SetCompression(false)
	}
	pdf.SetTitle(pw.config.Title, true)
	if pw.config.Author != "" {
		pdf.SetAuthor(pw.config.Author, true)
	}
	pdf.SetCreator(defaults.ToolNameDisplay, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")

	pw.setupDecorations(pdf)

	sections := pw.sections()

	pw.addCoverPage(pdf)
	if pw.config.IncludeTOC {
		pw.addTableOfContents(pdf, sections)
	}
	for _, sec := range sections {
		sec.render(pdf, sec.title)
	}
	return pdf
}

// setupDecorations installs the per-page watermark and footer.
func (pw *PDFWriter) setupDecorations(pdf *gofpdf.Fpdf) {
	if pw.config.WatermarkText != "" {
		pdf.SetHeaderFunc(func() {
			pageW, pageH := pdf.GetPageSize()
			pdf.SetFont("Helvetica", "B", 48)
			pdf.SetTextColor(232, 232, 232)
			pdf.TransformBegin()
			pdf.TransformRotate(45, pageW/2, pageH/2)
			pdf.SetXY(0, pageH/2-10)
			pdf.CellFormat(pageW, 20, pw.config.WatermarkText, "", 0, "C", false, 0, "")
			pdf.TransformEnd()
			pdf.SetTextColor(0, 0, 0)
			pdf.SetXY(15, 15)
		})
	}

	footer := pw.config.FooterText
	if footer == "" {
		footer = "Generated by " + defaults.ToolNameDisplay
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(100, 10, footer, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
}

// addSectionHeader renders the standard slate section banner.
func (pw *PDFWriter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 11, "  "+title, "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

// sectionIntro renders the gray introduction paragraph under a header.
func (pw *PDFWriter) sectionIntro(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.MultiCell(0, 5, text, "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)
}

// ensureRoom starts a new page when fewer than needed millimeters remain.
func (pw *PDFWriter) ensureRoom(pdf *gofpdf.Fpdf, needed float64) {
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+needed > pageH-25 {
		pdf.AddPage()
	}
}

// addCoverPage renders the title page with target and compliance summary.
func (pw *PDFWriter) addCoverPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()

	if pw.config.Classification != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(220, 53, 69)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetXY(pageW-55, 12)
		pdf.CellFormat(40, 7, pw.config.Classification, "", 0, "C", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.SetY(60)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(30, 41, 59)
	pdf.MultiCell(0, 12, pw.config.Title, "", "C", false)
	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 8, "Model Context Protocol Conformance Assessment", "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(10)

	comp := pw.compliance()
	if pw.summary != nil || len(pw.results) > 0 {
		color := getTierColor(comp.Tier)
		boxW := 110.0
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetX((pageW - boxW) / 2)
		pdf.CellFormat(boxW, 13, comp.Tier, "", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetX((pageW - boxW) / 2)
		pdf.CellFormat(boxW, 9, fmt.Sprintf("Score: %.1f%%", comp.Score), "", 1, "C", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(12)

	var rows [][2]string
	if s := pw.summary; s != nil {
		if s.Target.Endpoint != "" {
			rows = append(rows, [2]string{"Endpoint", s.Target.Endpoint})
		}
		if s.Target.ServerName != "" {
			rows = append(rows, [2]string{"Server", s.Target.ServerName})
		}
		if s.Target.Transport != "" {
			rows = append(rows, [2]string{"Transport", s.Target.Transport})
		}
		if s.Target.Revision != "" {
			rows = append(rows, [2]string{"Revision", s.Target.Revision})
		}
		if !s.Timing.StartedAt.IsZero() {
			rows = append(rows, [2]string{"Started", s.Timing.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")})
		}
		if s.Timing.DurationSec > 0 {
			rows = append(rows, [2]string{"Duration", formatDuration(s.Timing.DurationSec)})
			if s.Totals.Checks > 0 {
				rate := float64(s.Totals.Checks) / s.Timing.DurationSec
				rows = append(rows, [2]string{"Throughput", fmt.Sprintf("%.1f checks/s", rate)})
			}
		}
	}
	if pw.config.CompanyName != "" {
		rows = append(rows, [2]string{"Prepared for", pw.config.CompanyName})
	}
	if pw.config.Author != "" {
		rows = append(rows, [2]string{"Author", pw.config.Author})
	}
	rows = append(rows, [2]string{"Generated", time.Now().UTC().Format("2006-01-02 15:04 MST")})

	for _, row := range rows {
		pdf.SetX(45)
		pdf.SetFont("Helvetica", "B", 10.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10.5)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}
}

// addTableOfContents renders the section list on its own page.
func (pw *PDFWriter) addTableOfContents(pdf *gofpdf.Fpdf, sections []pdfSection) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Table of Contents")

	pdf.SetFont("Helvetica", "", 11)
	for i, sec := range sections {
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(12, 8, fmt.Sprintf("%d.", i+1), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 8, "  "+sec.title, "", 1, "L", false, 0, "")
	}
}

// addExecutiveSummary renders totals, the compliance score, and the
// requirement level breakdown.
func (pw *PDFWriter) addExecutiveSummary(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)

	if pw.summary == nil && len(pw.results) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 8, "No summary data available.", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		return
	}

	totals := pw.totals()
	comp := pw.compliance()

	intro := fmt.Sprintf(
		"The server passed %d of %d conformance checks for a weighted compliance score of %.1f%% (%s). %s",
		totals.Passed, totals.Checks, comp.Score, comp.Tier, postureSummary(comp.Score))
	pw.sectionIntro(pdf, intro)

	// Totals table
	statRows := []struct {
		label string
		value int
	}{
		{"Total Checks", totals.Checks},
		{"Passed", totals.Passed},
		{"Failed", totals.Failed},
		{"Skipped", totals.Skipped},
		{"Timeouts", totals.Timeouts},
		{"Errors", totals.Errors},
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(80, 8, "  Metric", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Count", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for i, row := range statRows {
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(80, 7, "  "+row.label, "1", 0, "L", true, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", row.value), "1", 1, "C", true, 0, "")
	}
	pdf.Ln(6)

	// Requirement level breakdown
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Results by Requirement Level", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(30, 8, "Level", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Total", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Passed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Pass Rate", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, level := range scoring.Levels() {
		st := comp.Stats(level)
		color := levelColor(level)
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 7, string(level), "1", 0, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(255, 255, 255)
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", st.Total), "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", st.Passed), "1", 0, "C", true, 0, "")
		rate := "n/a"
		if st.Total > 0 {
			rate = fmt.Sprintf("%.1f%%", float64(st.Passed)/float64(st.Total)*100)
		}
		pdf.CellFormat(30, 7, rate, "1", 1, "C", true, 0, "")
	}
}

// addTopFailures renders the summary's ranked failure list.
func (pw *PDFWriter) addTopFailures(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "The most significant failing checks from this run, ranked by requirement level. MUST failures break interoperability with conforming clients and should be addressed first.")

	failures := pw.summary.Failures
	const maxRows = 15
	shown := failures
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	pdf.SetFont("Helvetica", "B", 9.5)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(10, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(62, 8, "  Check", "1", 0, "L", true, 0, "")
	pdf.CellFormat(26, 8, "Category", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Level", "1", 0, "C", true, 0, "")
	pdf.CellFormat(62, 8, "  Message", "1", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 8.5)
	for i, f := range shown {
		pw.ensureRoom(pdf, 10)
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(10, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", true, 0, "")
		pdf.CellFormat(62, 7, "  "+truncateString(f.Name, 40), "1", 0, "L", true, 0, "")
		pdf.CellFormat(26, 7, strings.ToUpper(f.Category), "1", 0, "C", true, 0, "")

		color := levelColor(f.Level)
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 8.5)
		pdf.CellFormat(20, 7, strings.ToUpper(string(f.Level)), "1", 0, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 8.5)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(62, 7, "  "+truncateString(f.Message, 42), "1", 1, "L", true, 0, "")
	}
	if len(failures) > maxRows {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 6, fmt.Sprintf("... and %d more failing checks. See the findings sections for the full list.", len(failures)-maxRows), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
}

// addCategoryBreakdown renders per-category pass rates with risk labels.
func (pw *PDFWriter) addCategoryBreakdown(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Pass Rate by Category. The risk label estimates how likely the remaining failures in each category are to break real clients.")

	byCat := pw.summary.Breakdown.ByCategory
	cats := make([]string, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	pdf.SetFont("Helvetica", "B", 9.5)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(36, 8, "  Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Checks", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Passed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Failed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Skipped", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 8, "Pass Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(24, 8, "Risk", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 9.5)
	for i, cat := range cats {
		pw.ensureRoom(pdf, 10)
		st := byCat[cat]
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(36, 7, "  "+strings.ToUpper(cat), "1", 0, "L", true, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", st.Total), "1", 0, "C", true, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", st.Passed), "1", 0, "C", true, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", st.Failed), "1", 0, "C", true, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", st.Skipped), "1", 0, "C", true, 0, "")

		counted := st.Total - st.Skipped
		rateText := "n/a"
		risk := "NONE"
		riskColor := []int{108, 117, 125}
		if counted > 0 {
			rate := float64(st.Passed) / float64(counted) * 100
			rateText = fmt.Sprintf("%.1f%%", rate)
			switch {
			case rate >= 90:
				risk, riskColor = "LOW", []int{25, 135, 84}
			case rate >= 70:
				risk, riskColor = "MEDIUM", []int{202, 138, 4}
			default:
				risk, riskColor = "HIGH", []int{220, 53, 69}
			}
		}
		pdf.CellFormat(26, 7, rateText, "1", 0, "C", true, 0, "")
		pdf.SetFillColor(riskColor[0], riskColor[1], riskColor[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9.5)
		pdf.CellFormat(24, 7, risk, "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(0, 0, 0)
	}
}

// specAreaOrder fixes the row order of the protocol area coverage table.
var specAreaOrder = []string{
	"Lifecycle",
	"Tools",
	"Async Operations",
	"Resources",
	"Prompts",
	"Utilities",
	"General",
}

// addSpecAreaCoverage maps executed checks onto protocol specification
// areas through the method each check exercised.
func (pw *PDFWriter) addSpecAreaCoverage(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Checks are attributed to specification areas through the protocol method recorded in their evidence. Areas without any exercised method are reported as not tested.")

	type areaStats struct {
		checks int
		failed int
	}
	stats := make(map[string]*areaStats)
	for _, area := range specAreaOrder {
		stats[area] = &areaStats{}
	}
	for _, r := range pw.results {
		area := "General"
		if r.Evidence != nil && r.Evidence.Method != "" {
			area = specAreaFor(r.Evidence.Method)
		}
		st, ok := stats[area]
		if !ok {
			st = &areaStats{}
			stats[area] = st
		}
		st.checks++
		if outcomeFails(r.Result.Outcome) {
			st.failed++
		}
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 8, "  Specification Area", "1", 0, "L", true, 0, "")
	pdf.CellFormat(28, 8, "Checks", "1", 0, "C", true, 0, "")
	pdf.CellFormat(28, 8, "Failed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(34, 8, "Status", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 10)
	for i, area := range specAreaOrder {
		st := stats[area]
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(60, 7, "  "+area, "1", 0, "L", true, 0, "")
		pdf.CellFormat(28, 7, fmt.Sprintf("%d", st.checks), "1", 0, "C", true, 0, "")
		pdf.CellFormat(28, 7, fmt.Sprintf("%d", st.failed), "1", 0, "C", true, 0, "")

		status := "NOT TESTED"
		color := []int{108, 117, 125}
		switch {
		case st.checks == 0:
		case st.failed == 0:
			status, color = "PASS", []int{25, 135, 84}
		default:
			status, color = "FAIL", []int{220, 53, 69}
		}
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(34, 7, status, "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}
}

// addDurationProfile summarizes check durations from the buffered results.
func (pw *PDFWriter) addDurationProfile(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Distribution of individual check durations. Slow checks usually point at servers that defer work to first use or sit behind cold transports.")

	durations := make([]float64, 0, len(pw.results))
	var sum float64
	for _, r := range pw.results {
		durations = append(durations, r.Result.DurationMs)
		sum += r.Result.DurationMs
	}
	sort.Float64s(durations)

	percentile := func(p float64) float64 {
		if len(durations) == 0 {
			return 0
		}
		idx := int(p * float64(len(durations)-1))
		return durations[idx]
	}

	rows := [][2]string{
		{"Min", fmt.Sprintf("%.0f ms", durations[0])},
		{"Average", fmt.Sprintf("%.0f ms", sum/float64(len(durations)))},
		{"P50", fmt.Sprintf("%.0f ms", percentile(0.50))},
		{"P95", fmt.Sprintf("%.0f ms", percentile(0.95))},
		{"Max", fmt.Sprintf("%.0f ms", durations[len(durations)-1])},
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(50, 8, "  Statistic", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Duration", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for i, row := range rows {
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(50, 7, "  "+row[0], "1", 0, "L", true, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 1, "C", true, 0, "")
	}

	// Slowest checks, when they stand out
	if len(pw.results) >= 3 {
		slowest := make([]*events.ResultEvent, len(pw.results))
		copy(slowest, pw.results)
		sort.Slice(slowest, func(i, j int) bool {
			return slowest[i].Result.DurationMs > slowest[j].Result.DurationMs
		})
		if len(slowest) > 5 {
			slowest = slowest[:5]
		}
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Slowest Checks", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		for _, r := range slowest {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s  (%.0f ms)", r.Check.Name, r.Result.DurationMs), "", 1, "L", false, 0, "")
		}
	}
}

// addNoFindings renders the empty findings state.
func (pw *PDFWriter) addNoFindings(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)

	pdf.Ln(4)
	pdf.SetFillColor(220, 245, 228)
	pdf.SetTextColor(22, 101, 52)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 12, "  No failing checks detected.", "", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 9, "  Every executed check passed against the negotiated protocol revision.", "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// addCategoryFindings renders the finding cards for one category.
func (pw *PDFWriter) addCategoryFindings(pdf *gofpdf.Fpdf, title string, group []*events.ResultEvent) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)

	sorted := make([]*events.ResultEvent, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := levelPriority(sorted[i].Check.Level), levelPriority(sorted[j].Check.Level)
		if pi != pj {
			return pi > pj
		}
		return sorted[i].Check.Name < sorted[j].Check.Name
	})

	for _, r := range sorted {
		pw.addFindingCard(pdf, r)
	}
}

// addFindingCard renders one failing check with its evidence.
func (pw *PDFWriter) addFindingCard(pdf *gofpdf.Fpdf, r *events.ResultEvent) {
	pw.ensureRoom(pdf, 45)

	level := strings.ToUpper(string(r.Check.Level))
	lc := levelColor(r.Check.Level)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(lc[0], lc[1], lc[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(20, 7, level, "", 0, "C", true, 0, "")

	oc, ok := pdfOutcomeColors[r.Result.Outcome]
	if !ok {
		oc = []int{108, 117, 125}
	}
	pdf.SetFillColor(oc[0], oc[1], oc[2])
	pdf.CellFormat(22, 7, strings.ToUpper(string(r.Result.Outcome)), "", 0, "C", true, 0, "")

	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Helvetica", "B", 10.5)
	pdf.CellFormat(0, 7, "  "+r.Check.Name, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8.5)
	pdf.SetTextColor(90, 90, 90)
	meta := fmt.Sprintf("Category: %s    Revision: %s    Duration: %.0f ms", r.Check.Category, r.Check.Revision, r.Result.DurationMs)
	if r.Evidence != nil && r.Evidence.Method != "" {
		meta += fmt.Sprintf("    Area: %s (%s)", specAreaFor(r.Evidence.Method), r.Evidence.Method)
	}
	pdf.CellFormat(0, 5, meta, "", 1, "L", false, 0, "")
	if len(r.Check.Tags) > 0 {
		pdf.CellFormat(0, 5, "Tags: "+strings.Join(r.Check.Tags, ", "), "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	if r.Result.Message != "" {
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.MultiCell(0, 5, r.Result.Message, "", "L", false)
	}

	if pw.config.IncludeEvidence && r.Evidence != nil {
		pw.addEvidenceBlock(pdf, r.Evidence)
	}
	pdf.Ln(5)
}

// addEvidenceBlock renders the wire exchange of one finding.
func (pw *PDFWriter) addEvidenceBlock(pdf *gofpdf.Fpdf, ev *events.Evidence) {
	const maxExchange = 700

	block := func(label, body string) {
		pw.ensureRoom(pdf, 18)
		pdf.SetFont("Helvetica", "B", 8.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(0, 5, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 7.5)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(245, 245, 245)
		pdf.MultiCell(0, 3.8, truncateString(body, maxExchange), "", "L", true)
		pdf.Ln(1)
	}

	if ev.Request != "" {
		block("Request", ev.Request)
	}
	if ev.Response != "" {
		block("Response", ev.Response)
		if code, ok := responseErrorCode(ev.Response); ok {
			pdf.SetFont("Helvetica", "I", 8.5)
			pdf.SetTextColor(90, 90, 90)
			pdf.CellFormat(0, 5, "Server error: "+errorCodeName(code), "", 1, "L", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
	}
	if ev.Detail != "" {
		pdf.SetFont("Helvetica", "I", 8.5)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 4.5, ev.Detail, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
}

// addRunConfiguration renders the run settings appendix. Zero values are
// omitted so unset knobs do not render as misleading zeros.
func (pw *PDFWriter) addRunConfiguration(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)

	var rows [][2]string
	endpoint, transport, revision, server := "", "", "", ""
	if pw.summary != nil {
		endpoint = pw.summary.Target.Endpoint
		transport = pw.summary.Target.Transport
		revision = pw.summary.Target.Revision
		server = pw.summary.Target.ServerName
	}
	if s := pw.start; s != nil {
		if endpoint == "" {
			endpoint = s.Target
		}
		if transport == "" {
			transport = s.Transport
		}
		if revision == "" {
			revision = s.Revision
		}
		if server == "" {
			server = s.ServerName
		}
	}
	if endpoint != "" {
		rows = append(rows, [2]string{"Endpoint", endpoint})
	}
	if server != "" {
		rows = append(rows, [2]string{"Server", server})
	}
	if transport != "" {
		rows = append(rows, [2]string{"Transport", transport})
	}
	if revision != "" {
		rows = append(rows, [2]string{"Revision", revision})
	}

	if s := pw.start; s != nil {
		cats := s.Categories
		if len(cats) == 0 {
			cats = s.Config.Categories
		}
		if len(cats) > 0 {
			rows = append(rows, [2]string{"Categories", strings.Join(cats, ", ")})
		}
		if s.TotalChecks > 0 {
			rows = append(rows, [2]string{"Planned Checks", fmt.Sprintf("%d", s.TotalChecks)})
		}
		if s.Config.Timeout > 0 {
			rows = append(rows, [2]string{"Check Timeout", fmt.Sprintf("%ds", s.Config.Timeout)})
		}
		if s.Config.ThrottleMs > 0 {
			rows = append(rows, [2]string{"Throttle", fmt.Sprintf("%dms", s.Config.ThrottleMs)})
		}
		if s.Config.Strict {
			rows = append(rows, [2]string{"Strict Mode", "enabled"})
		}
	}

	if s := pw.summary; s != nil {
		if s.Totals.Checks > 0 {
			rows = append(rows, [2]string{"Executed Checks", fmt.Sprintf("%d", s.Totals.Checks)})
		}
		if !s.Timing.StartedAt.IsZero() {
			rows = append(rows, [2]string{"Started", s.Timing.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")})
		}
		if !s.Timing.CompletedAt.IsZero() {
			rows = append(rows, [2]string{"Completed", s.Timing.CompletedAt.UTC().Format("2006-01-02 15:04:05 MST")})
		}
		if s.Timing.DurationSec > 0 {
			rows = append(rows, [2]string{"Duration", formatDuration(s.Timing.DurationSec)})
		}
		if s.ExitReason != "" {
			rows = append(rows, [2]string{"Exit Reason", s.ExitReason})
		}
	}

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 8, "No run configuration recorded.", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		return
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(55, 8, "  Setting", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "  Value", "1", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for i, row := range rows {
		pw.ensureRoom(pdf, 10)
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(55, 7, "  "+row[0], "1", 0, "L", true, 0, "")
		pdf.CellFormat(0, 7, "  "+row[1], "1", 1, "L", true, 0, "")
	}
}

// addMethodology renders the testing methodology appendix.
func (pw *PDFWriter) addMethodology(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Every run follows the same four-step procedure so results stay comparable across servers, revisions, and time.")

	steps := []struct {
		name string
		desc string
	}{
		{"1. CHECK EXECUTION", "Each conformance check drives the server through a scripted JSON-RPC exchange over the configured transport, starting from a fresh initialize handshake so earlier checks cannot mask lifecycle defects."},
		{"2. RESPONSE VALIDATION", "Responses are validated against the negotiated protocol revision: frame shape, id echo, required result fields, and error codes. The exchange that decided each check is recorded as evidence."},
		{"3. COMPLIANCE SCORING", "Outcomes are weighted by requirement level (MUST x10, SHOULD x3, MAY x1) and aggregated into a single compliance score. Skipped checks are excluded from both sides of the ratio."},
		{"4. LEVEL CLASSIFICATION", "Every check is classified by the requirement level of the specification clause it verifies, following the RFC 2119 key words used throughout the protocol specification."},
	}
	for _, step := range steps {
		pdf.SetFont("Helvetica", "B", 10.5)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 7, step.name, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, step.desc, "", "L", false)
		pdf.Ln(2)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Scoring Tiers", "", 1, "L", false, 0, "")
	pdf.Ln(1)
	tiers := []struct {
		name   string
		scores string
	}{
		{scoring.TierFully, "100%"},
		{scoring.TierSubstantially, "90% - 99.9%"},
		{scoring.TierPartially, "75% - 89.9%"},
		{scoring.TierMinimally, "50% - 74.9%"},
		{scoring.TierNonCompliant, "below 50%"},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, tier := range tiers {
		color := getTierColor(tier.name)
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9.5)
		pdf.CellFormat(70, 7, "  "+tier.name, "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFillColor(255, 255, 255)
		pdf.CellFormat(50, 7, tier.scores, "1", 1, "C", true, 0, "")
	}

	// Revision notes for the negotiated revision
	revision := ""
	if pw.summary != nil {
		revision = pw.summary.Target.Revision
	} else if pw.start != nil {
		revision = pw.start.Revision
	}
	if note := revisionNote(revision); note != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Negotiated Revision: "+revision, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, note, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
}
