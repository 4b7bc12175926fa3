// pkg/input/flags.go
package input

import (
	"fmt"
	"sort"
	"strings"
)

// StringSliceFlag implements flag.Value for repeated/comma-separated string flags
type StringSliceFlag []string

func (s *StringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSliceFlag) Set(value string) error {
	// Split by comma and append each value
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// HeaderFlag implements flag.Value for repeated "Name: Value" header
// flags. "Name=Value" works too. A later value for the same name
// overwrites the earlier one.
type HeaderFlag map[string]string

func (h *HeaderFlag) String() string {
	if len(*h) == 0 {
		return ""
	}
	keys := make([]string, 0, len(*h))
	for k := range *h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+(*h)[k])
	}
	return strings.Join(parts, "; ")
}

func (h *HeaderFlag) Set(value string) error {
	sep := strings.IndexAny(value, ":=")
	if sep < 1 {
		return fmt.Errorf("bad header %q: want \"Name: Value\"", value)
	}
	name := strings.TrimSpace(value[:sep])
	val := strings.TrimSpace(value[sep+1:])
	if name == "" {
		return fmt.Errorf("bad header %q: empty name", value)
	}
	if *h == nil {
		*h = make(map[string]string)
	}
	(*h)[name] = val
	return nil
}
