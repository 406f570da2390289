package alert

// Event names an alert trigger.
const (
	EventTerminated   = "terminated"
	EventCritical     = "critical"
	EventEndCondition = "end_condition"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["terminated", "critical", "end_condition"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	SessionID  string `json:"session_id"`
	Scene      string `json:"scene"`
	Event      string `json:"event"`
	Kind       string `json:"kind,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Reason     string `json:"reason"`
	Matched    string `json:"matched_text,omitempty"`
	PolicyHash string `json:"policy_hash"`
}
