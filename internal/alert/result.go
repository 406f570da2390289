package alert

import (
	"time"

	"github.com/ppiankov/sceneguard/internal/model"
)

// EventsFor derives the alert events a finished guard session produces:
// one per critical violation, one for a stop and one when the end
// condition was reached.
func EventsFor(sessionID, scene, policyHash string, r model.GuardResult) []AlertEvent {
	ts := time.Now().UTC().Format(time.RFC3339)
	base := AlertEvent{
		Timestamp:  ts,
		SessionID:  sessionID,
		Scene:      scene,
		PolicyHash: policyHash,
	}

	var out []AlertEvent
	for _, v := range r.Violations {
		if v.Severity != model.SeverityCritical {
			continue
		}
		e := base
		e.Event = EventCritical
		e.Kind = string(v.Kind)
		e.Severity = string(v.Severity)
		e.Reason = v.Description
		e.Matched = v.Matched
		out = append(out, e)
	}
	if r.EndConditionReached {
		e := base
		e.Event = EventEndCondition
		e.Reason = "end condition reached"
		out = append(out, e)
	}
	if r.WasTerminated {
		e := base
		e.Event = EventTerminated
		e.Reason = r.TerminationReason
		out = append(out, e)
	}
	return out
}

// DispatchResult sends every event EventsFor derives from r.
func (d *Dispatcher) DispatchResult(sessionID, scene, policyHash string, r model.GuardResult) {
	if d == nil {
		return
	}
	for _, e := range EventsFor(sessionID, scene, policyHash, r) {
		d.Dispatch(e)
	}
}
