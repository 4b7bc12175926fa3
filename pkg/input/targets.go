// pkg/input/targets.go
package input

import (
	"fmt"
	"strings"
	"unicode"
)

// Transport kinds a raw target can resolve to.
const (
	KindAuto  = "auto"
	KindHTTP  = "http"
	KindStdio = "stdio"
)

// Resolved is a classified target: either an HTTP endpoint to connect
// to or a command line to spawn.
type Resolved struct {
	Kind     string   // KindHTTP or KindStdio
	Endpoint string   // endpoint URL when Kind is KindHTTP
	Command  []string // argv when Kind is KindStdio; Command[0] is the binary
}

// Resolve classifies a raw target string. kind forces the transport;
// KindAuto (or "") infers it: strings starting with http:// or https://
// are endpoints, everything else is a peer command line.
func Resolve(raw, kind string) (*Resolved, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty target")
	}

	switch kind {
	case "", KindAuto:
		if hasHTTPScheme(raw) {
			kind = KindHTTP
		} else {
			kind = KindStdio
		}
	case KindHTTP, KindStdio:
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s, %s, or %s)", kind, KindAuto, KindStdio, KindHTTP)
	}

	if kind == KindHTTP {
		// A forced-http target may omit the scheme; TLS stays opt-in.
		if !hasHTTPScheme(raw) {
			raw = "http://" + raw
		}
		return &Resolved{Kind: KindHTTP, Endpoint: raw}, nil
	}

	argv, err := SplitCommand(raw)
	if err != nil {
		return nil, fmt.Errorf("bad peer command %q: %w", raw, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty peer command")
	}
	return &Resolved{Kind: KindStdio, Command: argv}, nil
}

func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// SplitCommand splits a command line into argv the way a shell would:
// whitespace separates arguments, single quotes keep everything
// literal, double quotes group words while still honoring backslash
// escapes.
func SplitCommand(line string) ([]string, error) {
	var argv []string
	var cur strings.Builder
	var quote rune
	escaped := false
	pending := false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			pending = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			pending = true
		case unicode.IsSpace(r):
			if pending || cur.Len() > 0 {
				argv = append(argv, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unclosed %c quote", quote)
	}
	if pending || cur.Len() > 0 {
		argv = append(argv, cur.String())
	}
	return argv, nil
}
