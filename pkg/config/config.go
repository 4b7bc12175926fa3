// Package config holds the control surface of a conformance run: the
// flat flag-backed Config, YAML suite files, and the peer environment.
//
// Build a Config with New, bind it to a FlagSet with Register, call
// Finish after parsing. ParseFlags wraps the three steps for the run
// command.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/input"
)

// RevisionLatest asks for the newest supported protocol revision.
const RevisionLatest = "latest"

// knownCategories are the built-in check categories, in run order.
var knownCategories = []string{"core", "tools", "async", "spec"}

// knownFormats are the report formats the output layer can produce.
var knownFormats = []string{"console", "json", "jsonl", "junit", "markdown", "html", "pdf"}

// Config holds all CLI configuration options for a run.
type Config struct {
	// Target settings
	Target          string           // HTTP(S) endpoint or peer command line
	Transport       string           // auto, stdio, http
	Revision        string           // protocol revision to offer; "latest" = newest
	WorkDir         string           // working directory for a spawned peer
	EnvFile         string           // .env file applied to the spawned peer
	Headers         input.HeaderFlag // extra HTTP headers
	Insecure        bool             // skip TLS verification
	SessionViaQuery bool             // mirror the session id into the query string

	// Check selection
	SuiteFile     string                // YAML suite file (see LoadSuite)
	Categories    input.StringSliceFlag // keep only these categories
	Skip          input.StringSliceFlag // check names to skip
	SkipLifecycle bool                  // do not grade lifecycle checks

	// Execution settings
	Strict       bool // any counted failure fails the run, not just MUST
	ThrottleMs   int  // pause between protocol requests in milliseconds
	CoreTimeout  time.Duration
	SpecTimeout  time.Duration
	ToolTimeout  time.Duration
	AsyncTimeout time.Duration

	// Output settings
	OutputDir string                // report directory (empty = console only)
	Formats   input.StringSliceFlag // console, json, jsonl, junit, markdown, html, pdf
	Verbose   bool                  // verbose output
	Quiet     bool                  // suppress progress output
	NoColor   bool                  // disable colored output

	// Hook settings
	MetricsAddr  string // Prometheus listen address (empty = disabled)
	OTLPEndpoint string // OTLP gRPC collector endpoint (empty = disabled)

	// Timeouts as parsed from flags, in seconds; Finish converts them.
	coreTimeoutSec  int
	specTimeoutSec  int
	toolTimeoutSec  int
	asyncTimeoutSec int

	resolved *input.Resolved
}

// New returns a Config with every default filled in.
func New() *Config {
	return &Config{
		Transport:       input.KindAuto,
		Revision:        RevisionLatest,
		coreTimeoutSec:  int(duration.TestCore / time.Second),
		specTimeoutSec:  int(duration.TestSpec / time.Second),
		toolTimeoutSec:  int(duration.TestTool / time.Second),
		asyncTimeoutSec: int(duration.TestAsync / time.Second),
	}
}

// Register binds every run flag to fs. Call it on a Config built by
// New so the defaults shown by -h match the ones actually applied.
func (c *Config) Register(fs *flag.FlagSet) {
	// === TARGET ===
	fs.StringVar(&c.Target, "u", c.Target, "Peer endpoint URL or command line")
	fs.StringVar(&c.Target, "target", c.Target, "Peer endpoint URL or command line (alias)")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Transport: auto, stdio, http")
	fs.StringVar(&c.Transport, "t", c.Transport, "Transport (alias)")
	fs.StringVar(&c.Revision, "revision", c.Revision, "Protocol revision to offer: latest, "+strings.Join(adapter.Revisions(), ", "))
	fs.StringVar(&c.Revision, "r", c.Revision, "Protocol revision (alias)")
	fs.StringVar(&c.WorkDir, "dir", c.WorkDir, "Working directory for a spawned peer")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, ".env file applied to the spawned peer")
	fs.Var(&c.Headers, "H", "Extra HTTP header as \"Name: Value\" - repeatable")
	fs.Var(&c.Headers, "header", "Extra HTTP header (alias)")
	fs.BoolVar(&c.Insecure, "insecure", false, "Skip TLS verification")
	fs.BoolVar(&c.Insecure, "k", false, "Skip TLS verification (alias)")
	fs.BoolVar(&c.SessionViaQuery, "session-query", false, "Mirror the session id into the session_id query parameter")

	// === SELECTION ===
	fs.StringVar(&c.SuiteFile, "suite", c.SuiteFile, "YAML suite file with check selection")
	fs.Var(&c.Categories, "category", "Run only these categories: "+strings.Join(knownCategories, ", "))
	fs.Var(&c.Categories, "c", "Category filter (alias)")
	fs.Var(&c.Skip, "skip", "Check names to skip - comma-separated or repeated")
	fs.BoolVar(&c.SkipLifecycle, "skip-lifecycle", false, "Do not grade lifecycle checks")

	// === EXECUTION ===
	fs.BoolVar(&c.Strict, "strict", false, "Any counted failure fails the run, not just MUST")
	fs.IntVar(&c.ThrottleMs, "throttle", c.ThrottleMs, "Pause between protocol requests in milliseconds")
	fs.IntVar(&c.toolTimeoutSec, "timeout", c.toolTimeoutSec, "Tool call budget in seconds")
	fs.IntVar(&c.coreTimeoutSec, "core-timeout", c.coreTimeoutSec, "Lifecycle check budget in seconds")
	fs.IntVar(&c.specTimeoutSec, "spec-timeout", c.specTimeoutSec, "Protocol probe budget in seconds")
	fs.IntVar(&c.asyncTimeoutSec, "async-timeout", c.asyncTimeoutSec, "Async flow budget in seconds")

	// === OUTPUT ===
	fs.StringVar(&c.OutputDir, "output", c.OutputDir, "Report directory (empty = console only)")
	fs.StringVar(&c.OutputDir, "o", c.OutputDir, "Report directory (alias)")
	fs.Var(&c.Formats, "format", "Report formats: "+strings.Join(knownFormats, ", "))
	fs.Var(&c.Formats, "f", "Report formats (alias)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose (alias)")
	fs.BoolVar(&c.Quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&c.Quiet, "q", false, "Quiet (alias)")
	fs.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&c.NoColor, "nc", false, "No color (alias)")

	// === HOOKS ===
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Prometheus listen address, e.g. :9090 (empty = disabled)")
	fs.StringVar(&c.OTLPEndpoint, "otel", c.OTLPEndpoint, "OTLP gRPC collector endpoint (empty = disabled)")
}

// Finish completes parsing: positional arguments become the target,
// the suite file fills flags not set explicitly, raw seconds become
// durations, and the result is validated.
func (c *Config) Finish(fs *flag.FlagSet) error {
	// Everything after the flags is the target, unquoted, so
	// `run npx server-everything -y` keeps -y for the peer.
	if args := fs.Args(); len(args) > 0 {
		if c.Target != "" {
			return fmt.Errorf("%w: both -u and a positional target given", ErrInvalidConfig)
		}
		c.Target = strings.Join(args, " ")
	}

	c.CoreTimeout = time.Duration(c.coreTimeoutSec) * time.Second
	c.SpecTimeout = time.Duration(c.specTimeoutSec) * time.Second
	c.ToolTimeout = time.Duration(c.toolTimeoutSec) * time.Second
	c.AsyncTimeout = time.Duration(c.asyncTimeoutSec) * time.Second

	if c.SuiteFile != "" {
		suite, err := LoadSuite(c.SuiteFile)
		if err != nil {
			return err
		}
		c.applySuite(suite, explicitFlags(fs))
	}

	if c.Revision == RevisionLatest {
		c.Revision = adapter.Latest()
	}
	if len(c.Formats) == 0 {
		c.Formats = input.StringSliceFlag{"console"}
	}

	return c.validate()
}

// ParseFlags parses a run command line. args is everything after the
// subcommand, typically os.Args[2:].
func ParseFlags(args []string) (*Config, error) {
	cfg := New()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cfg.Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Finish(fs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolved returns the classified target. Only valid after Finish.
func (c *Config) Resolved() *input.Resolved { return c.resolved }

func (c *Config) validate() error {
	if c.Target == "" {
		return fmt.Errorf("%w: target required: pass an endpoint URL or a peer command line", ErrMissingRequired)
	}
	switch c.Transport {
	case input.KindAuto, input.KindStdio, input.KindHTTP:
	default:
		return fmt.Errorf("%w: unknown transport %q (want %s, %s, or %s)", ErrInvalidConfig, c.Transport, input.KindAuto, input.KindStdio, input.KindHTTP)
	}
	if !adapter.Supported(c.Revision) {
		return fmt.Errorf("%w: unsupported revision %q (supported: %s)", ErrInvalidConfig, c.Revision, strings.Join(adapter.Revisions(), ", "))
	}
	for _, cat := range c.Categories {
		if !knownString(knownCategories, strings.ToLower(cat)) {
			return fmt.Errorf("%w: unknown category %q (known: %s)", ErrInvalidConfig, cat, strings.Join(knownCategories, ", "))
		}
	}
	for _, f := range c.Formats {
		if !knownString(knownFormats, strings.ToLower(f)) {
			return fmt.Errorf("%w: unknown format %q (known: %s)", ErrInvalidConfig, f, strings.Join(knownFormats, ", "))
		}
	}
	if c.ThrottleMs < 0 {
		return fmt.Errorf("%w: throttle must not be negative", ErrInvalidConfig)
	}
	for _, tc := range []struct {
		name string
		d    time.Duration
	}{
		{"timeout", c.ToolTimeout},
		{"core-timeout", c.CoreTimeout},
		{"spec-timeout", c.SpecTimeout},
		{"async-timeout", c.AsyncTimeout},
	} {
		if tc.d <= 0 {
			return fmt.Errorf("%w: -%s must be positive seconds", ErrInvalidConfig, tc.name)
		}
	}

	res, err := input.Resolve(c.Target, c.Transport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.resolved = res
	if res.Kind == input.KindStdio && len(c.Headers) > 0 {
		return fmt.Errorf("%w: -H headers only apply to the http transport", ErrInvalidConfig)
	}
	return nil
}

// explicitFlags returns the set of flag names the user actually passed.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func knownString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
