package sceneguard

import (
	"github.com/ppiankov/sceneguard/internal/model"
)

// EndConditionKind describes the shape of a scene's closing beat.
type EndConditionKind = model.EndConditionKind

const (
	EndDialogue  = model.EndDialogue
	EndAction    = model.EndAction
	EndNarration = model.EndNarration
)

// ViolationKind is the category of a recorded violation.
type ViolationKind = model.ViolationKind

const (
	EndConditionExceeded  = model.KindEndConditionExceeded
	TimeJump              = model.KindTimeJump
	ScopeExceeded         = model.KindScopeExceeded
	UnauthorizedCharacter = model.KindUnauthorizedCharacter
)

// Severity grades a violation.
type Severity = model.Severity

const (
	Warning  = model.SeverityWarning
	Critical = model.SeverityCritical
)

type (
	// Violation is one piece of recorded evidence.
	Violation = model.Violation
	// FragmentResult is returned for every processed fragment.
	FragmentResult = model.FragmentResult
	// Result summarizes a guard session.
	Result = model.GuardResult
)

// Scene describes the scene a guard enforces.
type Scene struct {
	TargetLength     int
	EndCondition     string
	EndConditionKind EndConditionKind
	Characters       []string
	// Roster lists every known character of the project. Without it
	// unauthorized characters are not detected.
	Roster []string
}

func (s Scene) constraints() model.SceneConstraints {
	kind := s.EndConditionKind
	if kind == "" {
		kind = EndNarration
	}
	return model.SceneConstraints{
		TargetLength:         s.TargetLength,
		EndCondition:         s.EndCondition,
		EndConditionKind:     kind,
		AuthorizedCharacters: s.Characters,
	}
}
