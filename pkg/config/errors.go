package config

import "errors"

// Sentinel errors for configuration failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidConfig indicates the run configuration is syntactically
	// or semantically invalid (bad suite YAML, conflicting flags, an
	// unknown revision or format).
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired indicates a required setting, such as the
	// target, was not provided.
	ErrMissingRequired = errors.New("config: missing required field")
)
