package alert

import (
	"testing"

	"github.com/ppiankov/sceneguard/internal/model"
)

func TestEventsForStoppedScene(t *testing.T) {
	r := model.GuardResult{
		WasTerminated:     true,
		TerminationReason: "length cap reached (80 characters)",
		Violations: []model.Violation{
			{Kind: model.KindTimeJump, Severity: model.SeverityCritical, Description: "time jump", Matched: "다음 날"},
			{Kind: model.KindEndConditionExceeded, Severity: model.SeverityWarning, Description: "end"},
			{Kind: model.KindScopeExceeded, Severity: model.SeverityCritical, Description: "cap"},
		},
	}
	events := EventsFor("g-1", "scene-3", "sha256:abc", r)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Event != EventCritical || events[0].Matched != "다음 날" {
		t.Errorf("expected first critical event with matched text, got %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Event != EventTerminated || last.Reason != r.TerminationReason {
		t.Errorf("expected terminated event last, got %+v", last)
	}
	for _, e := range events {
		if e.SessionID != "g-1" || e.Scene != "scene-3" || e.PolicyHash != "sha256:abc" {
			t.Errorf("expected session fields on every event, got %+v", e)
		}
	}
}

func TestEventsForEndCondition(t *testing.T) {
	r := model.GuardResult{WasTerminated: true, EndConditionReached: true, TerminationReason: "end condition reached"}
	events := EventsFor("g-1", "", "", r)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != EventEndCondition {
		t.Errorf("expected end_condition first, got %s", events[0].Event)
	}
}

func TestEventsForCleanScene(t *testing.T) {
	if events := EventsFor("g-1", "", "", model.GuardResult{Content: "ok"}); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestDispatchResultNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.DispatchResult("g-1", "", "", model.GuardResult{WasTerminated: true})
}
