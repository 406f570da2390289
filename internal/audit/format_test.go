package audit

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatTimelineHeaderAndSummary(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, ReplayFilter{SessionID: "g-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "Session: g-aaa | Scene: ch01-s01") {
		t.Errorf("expected header with session and scene, got:\n%s", out)
	}
	if !strings.Contains(out, "2 time_jump") {
		t.Errorf("expected '2 time_jump' in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "stopped: end condition reached") {
		t.Errorf("expected stop outcome in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "533 characters") {
		t.Errorf("expected final length in summary, got:\n%s", out)
	}
}

func TestFormatTimelineEntryColumns(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, ReplayFilter{SessionID: "g-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "@88") {
		t.Error("expected violation position")
	}
	if !strings.Contains(out, "unauthorized_character") {
		t.Error("expected kind column")
	}
	if !strings.Contains(out, "STOP") {
		t.Error("expected STOP event")
	}
}

func TestFormatJSONValid(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, ReplayFilter{SessionID: "g-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	jsonStr, err := FormatJSON(result)
	if err != nil {
		t.Fatal(err)
	}

	var parsed ReplayResult
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("JSON output not valid: %v", err)
	}
	if parsed.SessionID != "g-aaa" {
		t.Errorf("expected session g-aaa, got %s", parsed.SessionID)
	}
	if len(parsed.Entries) != 5 {
		t.Errorf("expected 5 entries in JSON, got %d", len(parsed.Entries))
	}
	if parsed.Summary.Total != 5 {
		t.Errorf("expected total 5 in JSON summary, got %d", parsed.Summary.Total)
	}
}

func TestFormatTimelineEmptyEntries(t *testing.T) {
	out := FormatTimeline(&ReplayResult{SessionID: "g-empty"})
	if !strings.Contains(out, "No entries found") {
		t.Errorf("expected 'No entries found' message, got:\n%s", out)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate(strings.Repeat("가", 60), 10)
	if got != strings.Repeat("가", 7)+"..." {
		t.Errorf("unexpected truncation %q", got)
	}
}
