package events

// StartEvent is emitted when a conformance run begins.
// It contains all initial configuration and target information
// that will be used throughout the run.
type StartEvent struct {
	BaseEvent
	Target      string    `json:"target"`
	Transport   string    `json:"transport"`
	Revision    string    `json:"revision,omitempty"`
	ServerName  string    `json:"server_name,omitempty"`
	Config      RunConfig `json:"config"`
	Categories  []string  `json:"categories,omitempty"`
	TotalChecks int       `json:"total_checks"`
}

// RunConfig contains the run configuration settings.
type RunConfig struct {
	Timeout    int      `json:"timeout_sec"`
	Categories []string `json:"categories,omitempty"`
	Strict     bool     `json:"strict"`
	ThrottleMs int      `json:"throttle_ms,omitempty"`
}
