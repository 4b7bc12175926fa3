// Specification coverage mapping and print-oriented report enhancement
package report

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/conformance"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// SectionStatus is the verdict for one specification section
type SectionStatus string

const (
	StatusPass          SectionStatus = "PASS"
	StatusFail          SectionStatus = "FAIL"
	StatusPartial       SectionStatus = "PARTIAL"
	StatusNotApplicable SectionStatus = "N/A"
)

// SectionResult records how one specification section fared in a run
type SectionResult struct {
	Revision    string        `json:"revision"`
	SectionID   string        `json:"section_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      SectionStatus `json:"status"`
	Evidence    string        `json:"evidence"`
	Checks      []string      `json:"checks,omitempty"`
	Tested      time.Time     `json:"tested"`
}

// CoverageReport maps one run onto the sections of a protocol revision
type CoverageReport struct {
	Revision        string          `json:"revision"`
	Target          string          `json:"target"`
	AssessedAt      time.Time       `json:"assessed_at"`
	Tool            string          `json:"tool"`
	Sections        []SectionResult `json:"sections"`
	PassRate        float64         `json:"pass_rate"`
	Recommendations []string        `json:"recommendations"`
}

// SectionMapper maps check categories to specification sections
type SectionMapper struct {
	revision string
	mappings map[string][]string // check category -> section ids
}

// NewSectionMapper creates a mapper for a specific protocol revision
func NewSectionMapper(revision string) *SectionMapper {
	mapper := &SectionMapper{
		revision: revision,
		mappings: make(map[string][]string),
	}
	mapper.loadMappings()
	return mapper
}

func (m *SectionMapper) loadMappings() {
	switch m.revision {
	case adapter.Rev20241105, adapter.Rev20250326:
		// The async tool extension does not exist before 2025-06-18.
		m.mappings = map[string][]string{
			conformance.CategoryCore:  {"basic/lifecycle", "basic/utilities/ping", "basic/transports"},
			conformance.CategoryTools: {"server/tools"},
			conformance.CategorySpec:  {"basic/messages"},
		}
	case adapter.Rev20250618:
		m.mappings = map[string][]string{
			conformance.CategoryCore:  {"basic/lifecycle", "basic/utilities/ping", "basic/transports"},
			conformance.CategoryTools: {"server/tools"},
			conformance.CategoryAsync: {"server/tools/async", "basic/utilities/cancellation"},
			conformance.CategorySpec:  {"basic/messages"},
		}
	}
}

// MapResults maps check verdicts to the sections they exercise
func (m *SectionMapper) MapResults(results []CheckRecord) []SectionResult {
	type tally struct {
		passed, failed, counted int
		checks                  []string
	}
	tallies := make(map[string]*tally)

	for _, r := range results {
		sectionIDs, ok := m.mappings[r.Category]
		if !ok {
			continue
		}
		for _, id := range sectionIDs {
			t := tallies[id]
			if t == nil {
				t = &tally{}
				tallies[id] = t
			}
			t.checks = append(t.checks, r.Name)
			switch {
			case r.Outcome == scoring.OutcomePassed:
				t.passed++
				t.counted++
			case r.Failing():
				t.failed++
				t.counted++
			}
			// Skipped checks contribute a mention but no verdict.
		}
	}

	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sections := make([]SectionResult, 0, len(ids))
	for _, id := range ids {
		t := tallies[id]
		sections = append(sections, SectionResult{
			Revision:    m.revision,
			SectionID:   id,
			Title:       m.sectionTitle(id),
			Description: m.sectionDescription(id),
			Status:      sectionStatus(t.passed, t.failed, t.counted),
			Evidence:    sectionEvidence(t.passed, t.counted),
			Checks:      t.checks,
			Tested:      time.Now(),
		})
	}

	return sections
}

func sectionStatus(passed, failed, counted int) SectionStatus {
	switch {
	case counted == 0:
		return StatusNotApplicable
	case failed == 0:
		return StatusPass
	case passed == 0:
		return StatusFail
	default:
		return StatusPartial
	}
}

func sectionEvidence(passed, counted int) string {
	if counted == 0 {
		return "no counted check exercised this section"
	}
	return fmt.Sprintf("%d/%d counted checks passed", passed, counted)
}

func (m *SectionMapper) sectionTitle(sectionID string) string {
	titles := map[string]string{
		"basic/lifecycle":              "Lifecycle",
		"basic/messages":               "Messages",
		"basic/transports":             "Transports",
		"basic/utilities/ping":         "Ping",
		"basic/utilities/cancellation": "Cancellation",
		"server/tools":                 "Tools",
		"server/tools/async":           "Async Tool Execution",
	}
	if title, ok := titles[sectionID]; ok {
		return title
	}
	return sectionID
}

func (m *SectionMapper) sectionDescription(sectionID string) string {
	descriptions := map[string]string{
		"basic/lifecycle":    "Initialization handshake, capability exchange, and shutdown",
		"basic/messages":     "JSON-RPC 2.0 framing, id correlation, and error codes",
		"server/tools":       "Tool discovery and invocation with schema-declared arguments",
		"server/tools/async": "Deferred tool execution with polling and cancellation",
	}
	if desc, ok := descriptions[sectionID]; ok {
		return desc
	}
	return "Protocol requirement validation"
}

// GenerateCoverageReport maps a run report onto the specification
// sections of its negotiated revision. An unknown or missing revision
// yields a report with no sections.
func GenerateCoverageReport(report *Report) *CoverageReport {
	if report == nil {
		return nil
	}

	mapper := NewSectionMapper(report.Target.Revision)
	sections := mapper.MapResults(report.Results)

	passCount := 0
	assessed := 0
	for _, s := range sections {
		if s.Status == StatusNotApplicable {
			continue
		}
		assessed++
		if s.Status == StatusPass {
			passCount++
		}
	}

	passRate := 0.0
	if assessed > 0 {
		passRate = float64(passCount) / float64(assessed) * 100
	}

	coverage := &CoverageReport{
		Revision:   report.Target.Revision,
		Target:     report.Target.Endpoint,
		AssessedAt: time.Now(),
		Tool:       defaults.ToolName + " " + defaults.Version,
		Sections:   sections,
		PassRate:   passRate,
	}

	coverage.Recommendations = coverageRecommendations(sections)

	return coverage
}

func coverageRecommendations(sections []SectionResult) []string {
	recs := make([]string, 0)

	failCount := 0
	partialCount := 0

	for _, s := range sections {
		switch s.Status {
		case StatusFail:
			failCount++
			recs = append(recs, fmt.Sprintf("Section %s (%s) has no passing checks: %s",
				s.SectionID, s.Title, s.Evidence))
		case StatusPartial:
			partialCount++
		}
	}

	if failCount == 0 && partialCount == 0 {
		recs = append(recs, "All exercised specification sections pass. Keep the suite running on server upgrades.")
	}

	return recs
}

// PDFEnhancer prepares report HTML for print or PDF conversion
type PDFEnhancer struct {
	Logo            string
	Watermark       string
	Confidential    bool
	HeaderText      string
	FooterText      string
	PageNumbers     bool
	TableOfContents bool
}

// NewPDFEnhancer creates a new PDF enhancer
func NewPDFEnhancer() *PDFEnhancer {
	return &PDFEnhancer{
		PageNumbers:     true,
		TableOfContents: true,
	}
}

// WithLogo sets the logo path/URL
func (p *PDFEnhancer) WithLogo(logo string) *PDFEnhancer {
	p.Logo = logo
	return p
}

// WithWatermark sets the watermark text
func (p *PDFEnhancer) WithWatermark(text string) *PDFEnhancer {
	p.Watermark = text
	return p
}

// WithConfidential marks the report as confidential
func (p *PDFEnhancer) WithConfidential(confidential bool) *PDFEnhancer {
	p.Confidential = confidential
	return p
}

// EnhanceHTML injects print-oriented CSS into generated report HTML so
// a browser's print-to-PDF output paginates cleanly.
func (p *PDFEnhancer) EnhanceHTML(htmlDoc []byte) []byte {
	var sb bytes.Buffer

	sb.WriteString(`<style>
@page {
  size: A4;
  margin: 2cm;
}
@page :first {
  margin-top: 3cm;
}
`)

	if p.Watermark != "" {
		sb.WriteString(fmt.Sprintf(`
@page {
  background: url('data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" width="500" height="500"><text x="50%%" y="50%%" font-size="40" fill="rgba(0,0,0,0.05)" text-anchor="middle" transform="rotate(-45 250 250)">%s</text></svg>');
}
`, html.EscapeString(p.Watermark)))
	}

	if p.Confidential {
		sb.WriteString(`
.confidential-banner {
  background: #ff0000;
  color: white;
  text-align: center;
  padding: 10px;
  font-weight: bold;
  position: fixed;
  top: 0;
  left: 0;
  right: 0;
}
`)
	}

	sb.WriteString(`
.page-break {
  page-break-before: always;
}
.no-break {
  page-break-inside: avoid;
}
</style>
`)

	// Insert before </head>
	htmlStr := string(htmlDoc)
	if idx := strings.Index(htmlStr, "</head>"); idx > 0 {
		return []byte(htmlStr[:idx] + sb.String() + htmlStr[idx:])
	}

	return append(sb.Bytes(), htmlDoc...)
}

// FormatCoverageTable formats section results as an HTML table.
// All interpolated fields are escaped; evidence strings may echo
// server-supplied text.
func FormatCoverageTable(sections []SectionResult) string {
	var sb strings.Builder

	sb.WriteString(`<table class="coverage-table">
<thead>
<tr>
<th>Revision</th>
<th>Section</th>
<th>Title</th>
<th>Status</th>
<th>Evidence</th>
</tr>
</thead>
<tbody>
`)

	for _, s := range sections {
		statusClass := "status-" + strings.ToLower(strings.ReplaceAll(string(s.Status), "/", ""))
		sb.WriteString(fmt.Sprintf(`<tr>
<td>%s</td>
<td>%s</td>
<td>%s</td>
<td class="%s">%s</td>
<td>%s</td>
</tr>
`,
			html.EscapeString(s.Revision),
			html.EscapeString(s.SectionID),
			html.EscapeString(s.Title),
			statusClass,
			html.EscapeString(string(s.Status)),
			html.EscapeString(s.Evidence)))
	}

	sb.WriteString("</tbody></table>")
	return sb.String()
}

// CoveredRevisions returns the revisions the mapper has section maps for
func CoveredRevisions() []string {
	return adapter.Revisions()
}
