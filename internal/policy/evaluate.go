package policy

import "github.com/ppiankov/sceneguard/internal/model"

// Check names one stage of the detector pipeline.
type Check string

const (
	CheckEndCondition Check = "end_condition"
	CheckTimeJump     Check = "time_jump"
	CheckCompression  Check = "compression"
	CheckLengthCap    Check = "length_cap"
	CheckParticipants Check = "unauthorized_character"
)

// Action is what the guard does once a check has fired.
type Action string

const (
	// Record keeps the evidence and lets the scene continue.
	Record Action = "record"
	// TruncateAndStop cuts the text at the detection boundary and terminates.
	TruncateAndStop Action = "truncate_and_stop"
	// StopWithoutTruncate terminates but keeps all accepted text.
	StopWithoutTruncate Action = "stop_without_truncate"
)

// Decide is the policy table. It is a pure function of the check and the
// mode. End condition and length cap stop regardless of mode.
// For participants the stop only applies once the escalation threshold is
// reached; the caller counts distinct identifiers.
func Decide(check Check, strict bool) Action {
	switch check {
	case CheckEndCondition, CheckLengthCap:
		return TruncateAndStop
	case CheckTimeJump, CheckCompression:
		if strict {
			return TruncateAndStop
		}
		return Record
	case CheckParticipants:
		if strict {
			return StopWithoutTruncate
		}
		return Record
	default:
		return Record
	}
}

// KindFor maps a check to the violation kind it records.
func KindFor(check Check) model.ViolationKind {
	switch check {
	case CheckEndCondition:
		return model.KindEndConditionExceeded
	case CheckTimeJump:
		return model.KindTimeJump
	case CheckParticipants:
		return model.KindUnauthorizedCharacter
	default:
		// compression and length both mean the scene outgrew its scope
		return model.KindScopeExceeded
	}
}

// SeverityFor maps a check to the severity of its violations.
func SeverityFor(check Check) model.Severity {
	if check == CheckEndCondition {
		return model.SeverityWarning
	}
	return model.SeverityCritical
}
