package scenario

import "github.com/ppiankov/sceneguard/internal/scene"

// Expect lists the outcome a case asserts. Nil fields are not checked.
type Expect struct {
	Terminated          *bool          `yaml:"terminated,omitempty"`
	EndConditionReached *bool          `yaml:"end_condition_reached,omitempty"`
	Violations          map[string]int `yaml:"violations,omitempty"`
	Content             *string        `yaml:"content,omitempty"`
	ReasonContains      string         `yaml:"reason_contains,omitempty"`
	MaxLength           int            `yaml:"max_length,omitempty"`
}

// Case is one guard session within a scenario. Either Fragments are
// streamed in order, or Text is run through the post-process check.
type Case struct {
	Name      string   `yaml:"name"`
	Strict    *bool    `yaml:"strict,omitempty"`
	Fragments []string `yaml:"fragments,omitempty"`
	Text      string   `yaml:"text,omitempty"`
	Expect    Expect   `yaml:"expect"`
}

// Scenario is a named collection of guard test cases sharing one scene.
type Scenario struct {
	Name    string      `yaml:"name"`
	Profile string      `yaml:"profile,omitempty"`
	Scene   scene.Scene `yaml:"scene"`
	Cases   []Case      `yaml:"cases"`
}

// CaseResult is the outcome of running one test case.
type CaseResult struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Passed     bool           `json:"passed"`
	Failures   []string       `json:"failures,omitempty"`
	Terminated bool           `json:"terminated"`
	Reason     string         `json:"reason,omitempty"`
	Violations map[string]int `json:"violations"`
	Length     int            `json:"length"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Error  string       `json:"error,omitempty"`
	Cases  []CaseResult `json:"cases"`
}
