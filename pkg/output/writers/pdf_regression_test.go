// Regression test: NewPDFWriter must not override IncludeEvidence=false.
//
// An earlier revision of the constructor contained:
//   if !config.IncludeEvidence { config.IncludeEvidence = true }
// which force-enabled evidence blocks no matter what the caller asked for,
// so request/response payloads always ended up in the report. Evidence is
// strictly opt-in; the constructor leaves the flag alone.
package writers

import (
	"bytes"
	"testing"
)

func TestNewPDFWriter_RespectsIncludeEvidenceFalse(t *testing.T) {
	t.Parallel()

	cfg := PDFConfig{
		IncludeEvidence: false,
	}

	w := NewPDFWriter(&bytes.Buffer{}, cfg)
	if w.config.IncludeEvidence {
		t.Error("IncludeEvidence was overridden to true; caller's false setting was ignored")
	}
}

func TestNewPDFWriter_RespectsIncludeEvidenceTrue(t *testing.T) {
	t.Parallel()

	cfg := PDFConfig{
		IncludeEvidence: true,
	}

	w := NewPDFWriter(&bytes.Buffer{}, cfg)
	if !w.config.IncludeEvidence {
		t.Error("IncludeEvidence should be true when explicitly set")
	}
}

func TestNewPDFWriter_DefaultValues(t *testing.T) {
	t.Parallel()

	w := NewPDFWriter(&bytes.Buffer{}, PDFConfig{})

	if w.config.Title == "" {
		t.Error("default Title should be set")
	}
	if w.config.PageSize == "" {
		t.Error("default PageSize should be set")
	}
	if w.config.Orientation == "" {
		t.Error("default Orientation should be set")
	}
	// IncludeEvidence stays at the Go zero value; callers opt in explicitly.
	if w.config.IncludeEvidence {
		t.Error("IncludeEvidence should default to false")
	}
}
