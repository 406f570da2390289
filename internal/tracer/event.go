package tracer

// Event is a JSON-serializable record of one processed fragment.
type Event struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Seq       int            `json:"seq"`
	InRunes   int            `json:"in_chars"`
	OutRunes  int            `json:"out_chars"`
	Continue  bool           `json:"continue"`
	Violation map[string]any `json:"violation,omitempty"`
}
