// Package report assembles the archival record of a conformance run.
//
// The package is organized by logical concern across multiple files:
//
// # Core Report Types (report.go)
//
// Report, ReportBuilder, ReportGenerator, ReportConfig, CheckRecord,
// Summary, Breakdown, TransportStats, ComparisonReport.
// These are the primary types for building a run report from check
// verdicts and rendering it in multiple formats (HTML, JSON, Markdown,
// Text). The report carries a murmur3 fingerprint of the verdict set so
// two runs can be compared by identity, and CompareReports diffs the
// failure sets of two runs for regression tracking.
//
// # Specification Coverage (coverage.go)
//
// SectionMapper, CoverageReport, SectionResult, SectionStatus.
// Maps check verdicts onto the specification sections of the negotiated
// protocol revision (lifecycle, messages, transports, tools, async tool
// execution), so a reader can see which parts of the spec a run
// exercised and how each fared. PDFEnhancer injects print CSS into
// generated HTML for clean print-to-PDF conversion.
//
// Binary (PDF) and streaming (JSONL, JUnit) report output is not
// rendered here; that is the run output pipeline's job.
package report
