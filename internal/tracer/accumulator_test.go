package tracer

import (
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/sceneguard/internal/model"
)

func TestNewSessionIDFormat(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "g-") {
		t.Errorf("expected g- prefix, got %s", id)
	}
	// g- + 12 hex chars = 14
	if len(id) != 14 {
		t.Errorf("expected length 14, got %d: %s", len(id), id)
	}
	if NewSessionID() == id {
		t.Error("expected unique session IDs")
	}
}

func TestNewRequestIDFormat(t *testing.T) {
	id := NewRequestID()
	if !strings.HasPrefix(id, "r-") || len(id) != 10 {
		t.Errorf("expected r- + 8 hex, got %s", id)
	}
}

func TestSessionTraceAssignsID(t *testing.T) {
	st := NewSessionTrace("", "ch01")
	if !strings.HasPrefix(st.SessionID, "g-") {
		t.Errorf("expected generated session ID, got %q", st.SessionID)
	}
	if NewSessionTrace("g-fixed", "").SessionID != "g-fixed" {
		t.Error("expected explicit session ID to be kept")
	}
}

func TestObserveCountsRunes(t *testing.T) {
	st := NewSessionTrace("g-1", "ch01")

	st.Observe("그는 걸었다.", model.FragmentResult{ShouldContinue: true, ProcessedFragment: "그는 걸었다."})
	ev := st.Observe("다음 날", model.FragmentResult{
		ProcessedFragment: "[END]",
		Violation:         &model.Violation{Kind: model.KindTimeJump, Severity: model.SeverityCritical, Position: 7},
	})

	if ev.Seq != 1 {
		t.Errorf("expected seq 1, got %d", ev.Seq)
	}
	if ev.InRunes != 4 {
		t.Errorf("expected 4 input characters, got %d", ev.InRunes)
	}
	if ev.Violation["type"] != "time_jump" {
		t.Errorf("expected time_jump violation, got %v", ev.Violation)
	}

	s := st.Stats()
	if s.Fragments != 2 || s.Violations != 1 || !s.Stopped {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.InRunes != 11 {
		t.Errorf("expected 11 input characters, got %d", s.InRunes)
	}
}

func TestObserveConcurrent(t *testing.T) {
	st := NewSessionTrace("g-c", "")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Observe("가", model.FragmentResult{ShouldContinue: true, ProcessedFragment: "가"})
		}()
	}
	wg.Wait()

	events := st.Events()
	if len(events) != 50 {
		t.Fatalf("expected 50 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Errorf("expected seq %d, got %d", i, ev.Seq)
		}
	}
}

func TestToJSONSnapshot(t *testing.T) {
	st := NewSessionTrace("g-j", "scene")
	st.Observe("가", model.FragmentResult{ShouldContinue: true})
	snap := st.ToJSON()
	if snap["session_id"] != "g-j" || snap["scene"] != "scene" {
		t.Errorf("unexpected snapshot %v", snap)
	}
	if len(snap["events"].([]Event)) != 1 {
		t.Error("expected one event in snapshot")
	}
}
