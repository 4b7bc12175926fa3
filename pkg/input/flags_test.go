// pkg/input/flags_test.go
package input

import (
	"flag"
	"testing"
)

func TestStringSliceFlag_SingleValue(t *testing.T) {
	var cats StringSliceFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&cats, "category", "check categories")

	err := fs.Parse([]string{"-category", "core"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(cats) != 1 || cats[0] != "core" {
		t.Errorf("expected [core], got %v", cats)
	}
}

func TestStringSliceFlag_RepeatedFlag(t *testing.T) {
	var cats StringSliceFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&cats, "category", "check categories")

	err := fs.Parse([]string{"-category", "core", "-category", "tools"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(cats) != 2 {
		t.Errorf("expected 2 categories, got %d: %v", len(cats), cats)
	}
}

func TestStringSliceFlag_CommaSeparated(t *testing.T) {
	var skip StringSliceFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&skip, "skip", "checks to skip")

	err := fs.Parse([]string{"-skip", "ping-round-trip,batch-rejected,session-id-issued"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(skip) != 3 {
		t.Errorf("expected 3 names, got %d: %v", len(skip), skip)
	}
}

func TestStringSliceFlag_Mixed(t *testing.T) {
	var skip StringSliceFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&skip, "skip", "checks to skip")

	err := fs.Parse([]string{"-skip", "a, b", "-skip", "c"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(skip) != 3 {
		t.Errorf("expected 3 names, got %d: %v", len(skip), skip)
	}
}

func TestHeaderFlag_ColonForm(t *testing.T) {
	var h HeaderFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&h, "H", "extra header")

	err := fs.Parse([]string{"-H", "Authorization: Bearer tok123"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if h["Authorization"] != "Bearer tok123" {
		t.Errorf("expected Authorization header, got %v", h)
	}
}

func TestHeaderFlag_EqualsForm(t *testing.T) {
	var h HeaderFlag
	if err := h.Set("X-Trace=1"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if h["X-Trace"] != "1" {
		t.Errorf("expected X-Trace=1, got %v", h)
	}
}

func TestHeaderFlag_LastValueWins(t *testing.T) {
	var h HeaderFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&h, "H", "extra header")

	err := fs.Parse([]string{"-H", "X-Env: dev", "-H", "X-Env: prod"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(h) != 1 || h["X-Env"] != "prod" {
		t.Errorf("expected X-Env=prod, got %v", h)
	}
}

func TestHeaderFlag_Invalid(t *testing.T) {
	var h HeaderFlag
	if err := h.Set("no-separator-here"); err == nil {
		t.Error("expected error for header without separator")
	}
	if err := h.Set(": value-only"); err == nil {
		t.Error("expected error for header without a name")
	}
}

func TestHeaderFlag_String(t *testing.T) {
	h := HeaderFlag{"B": "2", "A": "1"}
	got := h.String()
	if got != "A: 1; B: 2" {
		t.Errorf("expected sorted rendering, got %q", got)
	}
}
