package model

// EndConditionKind describes what shape the scene's closing beat takes.
type EndConditionKind string

const (
	EndDialogue  EndConditionKind = "dialogue"
	EndAction    EndConditionKind = "action"
	EndNarration EndConditionKind = "narration"
)

// ParseEndConditionKind maps a string to an EndConditionKind.
// Unknown or empty values fall back to narration.
func ParseEndConditionKind(s string) EndConditionKind {
	switch EndConditionKind(s) {
	case EndDialogue, EndAction:
		return EndConditionKind(s)
	default:
		return EndNarration
	}
}

// ViolationKind is the category of a detected constraint breach.
type ViolationKind string

const (
	KindEndConditionExceeded  ViolationKind = "end_condition_exceeded"
	KindTimeJump              ViolationKind = "time_jump"
	KindScopeExceeded         ViolationKind = "scope_exceeded"
	KindUnauthorizedCharacter ViolationKind = "unauthorized_character"
)

// Severity grades a violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SceneConstraints is the caller-owned description of one scene.
// It is read-only for the lifetime of a guard session.
type SceneConstraints struct {
	TargetLength         int              `json:"target_length" yaml:"target_length"`
	EndCondition         string           `json:"end_condition" yaml:"end_condition"`
	EndConditionKind     EndConditionKind `json:"end_condition_type" yaml:"end_condition_type"`
	AuthorizedCharacters []string         `json:"characters" yaml:"characters"`
}

// IsAuthorized reports whether id is one of the scene's participants.
func (c SceneConstraints) IsAuthorized(id string) bool {
	for _, a := range c.AuthorizedCharacters {
		if a == id {
			return true
		}
	}
	return false
}

// Violation is one piece of recorded evidence. Positions are rune offsets
// into the accumulated text at the time of detection.
type Violation struct {
	Kind        ViolationKind `json:"type"`
	Severity    Severity      `json:"severity"`
	Position    int           `json:"position"`
	Description string        `json:"description"`
	Matched     string        `json:"matched_text,omitempty"`
}

// DetectionResult is the transient outcome of a single detector run.
// Position and Length are rune offsets relative to the scanned text.
type DetectionResult struct {
	Detected bool
	Position int
	Length   int
	Matched  string
}

// NotDetected is the zero result.
var NotDetected = DetectionResult{Position: -1}

// FragmentResult is returned for every processed fragment.
type FragmentResult struct {
	ShouldContinue    bool       `json:"should_continue"`
	ProcessedFragment string     `json:"processed_fragment"`
	Violation         *Violation `json:"violation,omitempty"`
}

// GuardResult summarizes a finished or in-progress session.
type GuardResult struct {
	Content             string      `json:"content"`
	WasTerminated       bool        `json:"was_terminated"`
	TerminationReason   string      `json:"termination_reason,omitempty"`
	Violations          []Violation `json:"violations"`
	EndConditionReached bool        `json:"end_condition_reached"`
}

// CountByKind returns how many violations of the given kind were recorded.
func (r GuardResult) CountByKind(kind ViolationKind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// HasCritical reports whether any recorded violation is critical.
func (r GuardResult) HasCritical() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
