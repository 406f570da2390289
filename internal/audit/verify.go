package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult is the outcome of checking an audit log's chain and entries.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Sessions  int    `json:"sessions"`
	Closed    int    `json:"closed"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks a JSONL audit log. Each line must be a well-formed guard
// entry and must carry the hash of the line before it; the first line
// carries the genesis hash. On failure ErrorLine names the first bad line.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	prevHash := GenesisHash
	sessions := make(map[string]bool)
	closed := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{Error: fmt.Sprintf("parse error: %v", err), ErrorLine: lineNum}
		}

		if entry.PrevHash != prevHash {
			msg := fmt.Sprintf("hash mismatch: expected %s, got %s", prevHash, entry.PrevHash)
			if lineNum == 1 {
				msg = fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash)
			}
			return VerifyResult{Error: msg, ErrorLine: lineNum}
		}
		if err := checkEntry(entry); err != nil {
			return VerifyResult{Error: err.Error(), ErrorLine: lineNum}
		}

		sessions[entry.SessionID] = true
		if entry.Event != EventViolation {
			closed++
		}
		prevHash = HashLine(line)
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lineNum, Sessions: len(sessions), Closed: closed}
}

// checkEntry validates the shape of one guard entry.
func checkEntry(e AuditEntry) error {
	if e.SessionID == "" {
		return fmt.Errorf("entry has no session_id")
	}
	switch e.Event {
	case EventViolation:
		if e.Kind == "" || e.Severity == "" {
			return fmt.Errorf("violation entry for session %s has no kind or severity", e.SessionID)
		}
	case EventStop, EventComplete:
		if e.Kind != "" {
			return fmt.Errorf("%s entry for session %s carries kind %q", e.Event, e.SessionID, e.Kind)
		}
	default:
		return fmt.Errorf("unknown event %q", e.Event)
	}
	return nil
}
