package tracer

import (
	"sync"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

// SessionTrace keeps the ordered per-fragment events of one guard session.
// Safe for concurrent use; the guard itself is not.
type SessionTrace struct {
	SessionID string
	Scene     string

	mu     sync.Mutex
	events []Event
	stats  Stats
}

// Stats summarizes a session trace.
type Stats struct {
	Fragments  int  `json:"fragments"`
	InRunes    int  `json:"in_chars"`
	OutRunes   int  `json:"out_chars"`
	Violations int  `json:"violations"`
	Stopped    bool `json:"stopped"`
}

// NewSessionTrace starts a trace. An empty id gets a fresh session ID.
func NewSessionTrace(sessionID, scene string) *SessionTrace {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &SessionTrace{SessionID: sessionID, Scene: scene, events: []Event{}}
}

// Observe records one fragment and the guard's decision on it.
func (st *SessionTrace) Observe(fragment string, res model.FragmentResult) Event {
	st.mu.Lock()
	defer st.mu.Unlock()

	ev := Event{
		Timestamp: UTCNowISO(),
		SessionID: st.SessionID,
		Seq:       len(st.events),
		InRunes:   utf8.RuneCountInString(fragment),
		OutRunes:  utf8.RuneCountInString(res.ProcessedFragment),
		Continue:  res.ShouldContinue,
	}
	if v := res.Violation; v != nil {
		ev.Violation = map[string]any{
			"type":     string(v.Kind),
			"severity": string(v.Severity),
			"position": v.Position,
			"matched":  v.Matched,
		}
		st.stats.Violations++
	}

	st.events = append(st.events, ev)
	st.stats.Fragments++
	st.stats.InRunes += ev.InRunes
	st.stats.OutRunes += ev.OutRunes
	if !res.ShouldContinue {
		st.stats.Stopped = true
	}
	return ev
}

// Events returns a copy of the recorded events.
func (st *SessionTrace) Events() []Event {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Event, len(st.events))
	copy(out, st.events)
	return out
}

// Stats returns the running totals.
func (st *SessionTrace) Stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stats
}

// ToJSON returns a snapshot for debugging / export.
func (st *SessionTrace) ToJSON() map[string]any {
	return map[string]any{
		"session_id": st.SessionID,
		"scene":      st.Scene,
		"stats":      st.Stats(),
		"events":     st.Events(),
	}
}
