package audit

import (
	"github.com/ppiankov/sceneguard/internal/model"
)

// Event types recorded in the audit log.
const (
	EventViolation = "violation"
	EventStop      = "stop"
	EventComplete  = "complete"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are scalars so json.Marshal field order stays deterministic
// and hashes are reproducible.
type AuditEntry struct {
	Timestamp  string `json:"ts"`
	SessionID  string `json:"session_id"`
	Scene      string `json:"scene"`
	Event      string `json:"event"`
	Kind       string `json:"kind,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Position   int    `json:"position"`
	Reason     string `json:"reason"`
	Matched    string `json:"matched_text,omitempty"`
	Length     int    `json:"length"`
	PolicyHash string `json:"policy_hash"`
	PrevHash   string `json:"prev_hash"`
}

// EntriesFor flattens a guard result into audit entries: one per violation,
// then a closing stop or complete entry.
func EntriesFor(sessionID, scene, policyHash string, r model.GuardResult) []AuditEntry {
	entries := make([]AuditEntry, 0, len(r.Violations)+1)
	for _, v := range r.Violations {
		entries = append(entries, AuditEntry{
			SessionID:  sessionID,
			Scene:      scene,
			Event:      EventViolation,
			Kind:       string(v.Kind),
			Severity:   string(v.Severity),
			Position:   v.Position,
			Reason:     v.Description,
			Matched:    v.Matched,
			PolicyHash: policyHash,
		})
	}

	closing := AuditEntry{
		SessionID:  sessionID,
		Scene:      scene,
		Event:      EventComplete,
		Reason:     "source exhausted",
		Length:     len([]rune(r.Content)),
		PolicyHash: policyHash,
	}
	if r.WasTerminated {
		closing.Event = EventStop
		closing.Reason = r.TerminationReason
	}
	return append(entries, closing)
}
