package events

// ResultEvent represents a single check result.
// It contains all information about a conformance check execution
// including the check metadata, outcome, and optional evidence.
type ResultEvent struct {
	BaseEvent
	Check    CheckInfo  `json:"check"`
	Result   ResultInfo `json:"result"`
	Evidence *Evidence  `json:"evidence,omitempty"`
}

// CheckInfo contains check metadata including identification,
// categorization, and the requirement level being verified.
type CheckInfo struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Level    Level    `json:"level"`
	Revision string   `json:"revision,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ResultInfo contains the check outcome including
// the result status, timing, and an optional message.
type ResultInfo struct {
	Outcome    Outcome `json:"outcome"`
	DurationMs float64 `json:"duration_ms"`
	Message    string  `json:"message,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// Evidence carries the wire exchange that decided a check,
// useful when diagnosing a failing server.
type Evidence struct {
	Method   string `json:"method,omitempty"`
	Request  string `json:"request,omitempty"`
	Response string `json:"response,omitempty"`
	Detail   string `json:"detail,omitempty"`
}
