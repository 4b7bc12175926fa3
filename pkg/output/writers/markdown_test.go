package writers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mcpconform/mcpconform/pkg/output/events"
)

func TestMarkdownWriter_RendersCompleteReport(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewMarkdownWriter(buf, MarkdownConfig{
		Title:                "Conformance Run",
		IncludeTOC:           true,
		ShowExecutiveSummary: true,
		ShowOutcomeBars:      true,
	})

	w.Write(makeResultEvent("initialize-result-fields", "core", events.LevelMust, events.OutcomePassed))
	w.Write(makeResultEvent("echo-round-trip", "tools", events.LevelMust, events.OutcomeFailed))
	w.Write(makeSummaryEvent())
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Conformance Run",
		"## Table of Contents",
		"## Executive Summary",
		"## Outcome Distribution",
		"## Compliance by Level",
		"## Category Breakdown",
		"echo-round-trip",
		"84.6%",
		"Partially Compliant",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdownWriter_DefaultsApplied(t *testing.T) {
	w := NewMarkdownWriter(&bytes.Buffer{}, MarkdownConfig{})

	if w.config.Title != "MCP Conformance Report" {
		t.Errorf("expected default title, got %q", w.config.Title)
	}
	if w.config.Flavor != "github" {
		t.Errorf("expected default flavor github, got %q", w.config.Flavor)
	}
}

func TestMarkdownWriter_SortModeEnvOverride(t *testing.T) {
	t.Setenv("MARKDOWN_EXPORT_SORT_MODE", "category")

	w := NewMarkdownWriter(&bytes.Buffer{}, MarkdownConfig{SortBy: "level"})
	if w.config.SortBy != "category" {
		t.Errorf("env var should override configured sort mode, got %q", w.config.SortBy)
	}
}

func TestMarkdownWriter_EvidenceOnlyForFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewMarkdownWriter(buf, MarkdownConfig{IncludeEvidence: true})

	passed := makeResultEvent("ping-round-trip", "core", events.LevelMust, events.OutcomePassed)
	passed.Evidence = &events.Evidence{Method: "ping", Request: `{"method":"ping-request-marker"}`}
	failed := makeResultEvent("echo-round-trip", "tools", events.LevelMust, events.OutcomeFailed)
	failed.Evidence = &events.Evidence{Method: "tools/call", Request: `{"method":"echo-request-marker"}`}

	w.Write(passed)
	w.Write(failed)
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "ping-request-marker") {
		t.Error("passing checks should not dump wire evidence")
	}
	if !strings.Contains(out, "echo-request-marker") {
		t.Error("failing checks should include wire evidence")
	}
}

func TestMarkdownWriter_SupportsResultAndSummary(t *testing.T) {
	w := NewMarkdownWriter(&bytes.Buffer{}, MarkdownConfig{})

	if !w.SupportsEvent(events.EventTypeResult) || !w.SupportsEvent(events.EventTypeSummary) {
		t.Error("markdown writer should support result and summary events")
	}
	if w.SupportsEvent(events.EventTypeProgress) {
		t.Error("markdown writer should ignore progress events")
	}
}
