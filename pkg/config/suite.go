package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcpconform/mcpconform/pkg/input"
)

// Suite is a reusable check selection loaded from a YAML file:
//
//	name: nightly
//	revision: "2025-03-26"
//	categories: [core, tools]
//	skip: [tools-call-sleep-bounded]
//	strict: true
//	throttleMs: 50
//	timeouts:
//	  core: 5s
//	  tool: 45s
//
// Values the file leaves out keep their flag or default values, and
// flags given explicitly on the command line win over the file. Skips
// are the one exception: file and flag skips merge.
type Suite struct {
	Name          string        `yaml:"name"`
	Revision      string        `yaml:"revision"`
	Categories    []string      `yaml:"categories"`
	Skip          []string      `yaml:"skip"`
	SkipLifecycle bool          `yaml:"skipLifecycle"`
	Strict        bool          `yaml:"strict"`
	ThrottleMs    int           `yaml:"throttleMs"`
	Timeouts      SuiteTimeouts `yaml:"timeouts"`
}

// SuiteTimeouts overrides the per-category budgets. Zero keeps the
// flag or default value.
type SuiteTimeouts struct {
	Core  Duration `yaml:"core"`
	Spec  Duration `yaml:"spec"`
	Tool  Duration `yaml:"tool"`
	Async Duration `yaml:"async"`
}

// Duration decodes YAML scalars like "30s" or "1m30s"; bare numbers
// are seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("bad duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("bad duration %q", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// LoadSuite reads a Suite from a YAML file. Unknown keys are an error
// so a typoed field cannot silently change what a run covers.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: suite file: %v", ErrInvalidConfig, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &Suite{}, nil
		}
		return nil, fmt.Errorf("%w: suite file %s: %v", ErrInvalidConfig, path, err)
	}
	return &s, nil
}

// applySuite copies suite values into c, skipping any flag the user
// set explicitly. set holds the flag names fs.Visit reported.
func (c *Config) applySuite(s *Suite, set map[string]bool) {
	flagged := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return true
			}
		}
		return false
	}

	if s.Revision != "" && !flagged("revision", "r") {
		c.Revision = s.Revision
	}
	if len(s.Categories) > 0 && !flagged("category", "c") {
		c.Categories = append(input.StringSliceFlag(nil), s.Categories...)
	}
	c.Skip = append(c.Skip, s.Skip...)
	if s.SkipLifecycle && !flagged("skip-lifecycle") {
		c.SkipLifecycle = true
	}
	if s.Strict && !flagged("strict") {
		c.Strict = true
	}
	if s.ThrottleMs > 0 && !flagged("throttle") {
		c.ThrottleMs = s.ThrottleMs
	}
	if s.Timeouts.Core > 0 && !flagged("core-timeout") {
		c.CoreTimeout = time.Duration(s.Timeouts.Core)
	}
	if s.Timeouts.Spec > 0 && !flagged("spec-timeout") {
		c.SpecTimeout = time.Duration(s.Timeouts.Spec)
	}
	if s.Timeouts.Tool > 0 && !flagged("timeout") {
		c.ToolTimeout = time.Duration(s.Timeouts.Tool)
	}
	if s.Timeouts.Async > 0 && !flagged("async-timeout") {
		c.AsyncTimeout = time.Duration(s.Timeouts.Async)
	}
}
