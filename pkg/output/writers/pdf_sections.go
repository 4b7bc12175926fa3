package writers

import (
	"fmt"
	"sort"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mcpconform/mcpconform/pkg/output/events"
)

// addLevelOutcomeMatrix renders a cross-tabulation of requirement level
// against check outcome. Outcome columns nobody hit are pruned.
func (pw *PDFWriter) addLevelOutcomeMatrix(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Cross-tabulation of requirement level against check outcome. Failures in the MUST row are the ones that break conforming clients.")

	levels := []string{"MUST", "SHOULD", "MAY"}
	counts := make(map[string]map[events.Outcome]int, len(levels))
	for _, l := range levels {
		counts[l] = make(map[events.Outcome]int)
	}
	for _, r := range pw.results {
		level := strings.ToUpper(string(r.Check.Level))
		if _, ok := counts[level]; !ok {
			continue
		}
		counts[level][r.Result.Outcome]++
	}

	allOutcomes := []events.Outcome{
		events.OutcomePassed,
		events.OutcomeFailed,
		events.OutcomeTimedOut,
		events.OutcomeErrored,
		events.OutcomeSkipped,
	}
	var shown []events.Outcome
	for _, o := range allOutcomes {
		total := 0
		for _, l := range levels {
			total += counts[l][o]
		}
		if total > 0 {
			shown = append(shown, o)
		}
	}
	if len(shown) == 0 {
		return
	}

	labelW := 32.0
	colW := 140.0 / float64(len(shown)+1)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(labelW, 8, "  Level", "1", 0, "L", true, 0, "")
	for _, o := range shown {
		pdf.CellFormat(colW, 8, capitalize(string(o)), "1", 0, "C", true, 0, "")
	}
	pdf.CellFormat(colW, 8, "Total", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 9)
	colTotals := make(map[events.Outcome]int, len(shown))
	grandTotal := 0
	for _, level := range levels {
		lc := pdfLevelColors[level]
		pdf.SetFillColor(lc[0], lc[1], lc[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, 7, "  "+level, "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)

		rowTotal := 0
		for _, o := range shown {
			n := counts[level][o]
			rowTotal += n
			colTotals[o] += n

			// Highlight cells where required behavior is failing.
			fill := []int{255, 255, 255}
			if n > 0 && outcomeFails(o) {
				switch level {
				case "MUST":
					fill = []int{254, 226, 226}
				case "SHOULD":
					fill = []int{255, 237, 213}
				}
			}
			pdf.SetFillColor(fill[0], fill[1], fill[2])
			pdf.CellFormat(colW, 7, fmt.Sprintf("%d", n), "1", 0, "C", true, 0, "")
		}
		grandTotal += rowTotal
		pdf.SetFillColor(248, 248, 248)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(colW, 7, fmt.Sprintf("%d", rowTotal), "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(248, 248, 248)
	pdf.CellFormat(labelW, 7, "  Total", "1", 0, "L", true, 0, "")
	for _, o := range shown {
		pdf.CellFormat(colW, 7, fmt.Sprintf("%d", colTotals[o]), "1", 0, "C", true, 0, "")
	}
	pdf.CellFormat(colW, 7, fmt.Sprintf("%d", grandTotal), "1", 1, "C", true, 0, "")
}

// hasPassingCategories reports whether the summary contains at least one
// category in which every counted check passed.
func (pw *PDFWriter) hasPassingCategories() bool {
	if pw.summary == nil {
		return false
	}
	for _, st := range pw.summary.Breakdown.ByCategory {
		if st.Total > 0 && st.Failed == 0 && st.Passed > 0 {
			return true
		}
	}
	return false
}

// addPassingCategories lists the categories with a clean record, so the
// report also says what already works.
func (pw *PDFWriter) addPassingCategories(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Categories in which every counted check passed. These behaviors can be relied on at the tested revision.")

	byCat := pw.summary.Breakdown.ByCategory
	var cats []string
	tested := 0
	for cat, st := range byCat {
		if st.Total > 0 {
			tested++
		}
		if st.Total > 0 && st.Failed == 0 && st.Passed > 0 {
			cats = append(cats, cat)
		}
	}
	sort.Strings(cats)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(22, 163, 74)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(50, 8, "  Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(28, 8, "Checks", "1", 0, "C", true, 0, "")
	pdf.CellFormat(28, 8, "Passed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(28, 8, "Pass Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 8, "Status", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 10)
	for i, cat := range cats {
		st := byCat[cat]
		fill := 255
		if i%2 == 1 {
			fill = 245
		}
		pdf.SetFillColor(fill, fill, fill)
		pdf.CellFormat(50, 7, "  "+strings.ToUpper(cat), "1", 0, "L", true, 0, "")
		pdf.CellFormat(28, 7, fmt.Sprintf("%d", st.Total), "1", 0, "C", true, 0, "")
		pdf.CellFormat(28, 7, fmt.Sprintf("%d", st.Passed), "1", 0, "C", true, 0, "")
		pdf.CellFormat(28, 7, "100.0%", "1", 0, "C", true, 0, "")
		pdf.SetFillColor(22, 163, 74)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 9.5)
		pdf.CellFormat(26, 7, "PASS", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 9.5)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d of %d tested categories passed every check.", len(cats), tested), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// addRemediationGuidance renders per-category guidance for the failing
// categories, worst first.
func (pw *PDFWriter) addRemediationGuidance(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)
	pw.sectionIntro(pdf, "Guidance for the failing categories, ordered by failure count. Each entry links the protocol specification page that defines the area.")

	failing := pw.failingByCategory()
	type catCount struct {
		category string
		count    int
	}
	entries := make([]catCount, 0, len(failing))
	for cat, group := range failing {
		entries = append(entries, catCount{cat, len(group)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].category < entries[j].category
	})

	for _, entry := range entries {
		pw.ensureRoom(pdf, 40)
		info := categoryGuidanceFor(entry.category)

		pdf.SetFont("Helvetica", "B", 11.5)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s (%d failing checks)", info.Title, entry.count), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, info.Guidance, "", "L", false)

		if info.ReferenceURL != "" {
			pdf.SetFont("Helvetica", "I", 8.5)
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(0, 5, "Reference: "+info.ReferenceURL, "", 1, "L", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}
}

// insight is one derived observation about the run.
type insight struct {
	icon  string
	title string
	body  string
}

// deriveInsights distills headline observations from the buffered events.
func (pw *PDFWriter) deriveInsights() []insight {
	var insights []insight
	s := pw.summary

	if s != nil && s.Target.ServerName != "" {
		body := fmt.Sprintf("%s responded over the %s transport", s.Target.ServerName, s.Target.Transport)
		if s.Target.Revision != "" {
			body += fmt.Sprintf(", negotiating protocol revision %s", s.Target.Revision)
		}
		insights = append(insights, insight{
			icon:  "[SRV]",
			title: "Server Identity",
			body:  body + ".",
		})
	}

	if s != nil {
		insights = append(insights, insight{
			icon:  "[TIER]",
			title: "Compliance Posture",
			body:  fmt.Sprintf("%s at a weighted score of %.1f%%. %s", s.Compliance.Tier, s.Compliance.Score, postureSummary(s.Compliance.Score)),
		})
	}

	// A category with repeated harness errors decided nothing.
	errorsByCat := make(map[string]int)
	for _, r := range pw.results {
		if r.Result.Outcome == events.OutcomeErrored {
			errorsByCat[r.Check.Category]++
		}
	}
	worstCat, worstErrs := "", 0
	for cat, n := range errorsByCat {
		if n > worstErrs || (n == worstErrs && cat < worstCat) {
			worstCat, worstErrs = cat, n
		}
	}
	if worstErrs >= 3 {
		titleCase := cases.Title(language.English)
		insights = append(insights, insight{
			icon:  "[ERR]",
			title: "Error-Prone Category",
			body:  fmt.Sprintf("%s produced %d harness errors; those checks decided nothing and the category needs a rerun.", titleCase.String(worstCat), worstErrs),
		})
	}

	timeouts := 0
	if s != nil {
		timeouts = s.Totals.Timeouts
	} else {
		for _, r := range pw.results {
			if r.Result.Outcome == events.OutcomeTimedOut {
				timeouts++
			}
		}
	}
	if timeouts > 0 {
		insights = append(insights, insight{
			icon:  "[TIME]",
			title: "Timeout Pressure",
			body:  fmt.Sprintf("%d checks timed out. The server may be slow to answer or silently dropping requests it does not recognize.", timeouts),
		})
	}

	if s != nil && s.Timing.DurationSec > 0 && s.Totals.Checks > 0 {
		insights = append(insights, insight{
			icon:  "[PERF]",
			title: "Run Performance",
			body:  fmt.Sprintf("%d checks completed in %s (%.1f checks/s).", s.Totals.Checks, formatDuration(s.Timing.DurationSec), float64(s.Totals.Checks)/s.Timing.DurationSec),
		})
	}

	return insights
}

// addRunInsights renders the derived observations.
func (pw *PDFWriter) addRunInsights(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, title)

	insights := pw.deriveInsights()
	if len(insights) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 8, "No notable insights for this run.", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		return
	}

	for _, in := range insights {
		pw.ensureRoom(pdf, 22)
		pdf.SetFont("Helvetica", "B", 10.5)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(18, 7, in.icon, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, in.title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9.5)
		pdf.SetTextColor(60, 60, 60)
		pdf.SetX(33)
		pdf.MultiCell(0, 5, in.body, "", "L", false)
		pdf.Ln(3)
	}
	pdf.SetTextColor(0, 0, 0)
}

// postureSummary turns a compliance score into one plain sentence.
func postureSummary(score float64) string {
	switch {
	case score >= 100:
		return "The server satisfies every checked requirement of the negotiated revision."
	case score >= 90:
		return "The server is broadly interoperable; the remaining failures are in recommended or optional behavior."
	case score >= 75:
		return "The server covers the core protocol but diverges on requirements that clients may depend on."
	case score >= 50:
		return "The server diverges from the specification in ways that will break standard clients."
	default:
		return "The server fails fundamental protocol requirements and needs rework before integration."
	}
}
