package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ppiankov/sceneguard/internal/model"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func stoppedResult() model.GuardResult {
	return model.GuardResult{
		Content:           "며칠이 지나\n\n[SCENE END]",
		WasTerminated:     true,
		TerminationReason: "time jump: 며칠이 지나",
		Violations: []model.Violation{
			{Kind: model.KindTimeJump, Severity: model.SeverityCritical, Position: 0, Matched: "며칠이 지나"},
			{Kind: model.KindUnauthorizedCharacter, Severity: model.SeverityCritical, Position: 4, Matched: "minho"},
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestEntryFor(t *testing.T) {
	got := EntryFor("g-1", "ep01-s03", "openai", "sha256:abc", stoppedResult())
	want := Entry{
		SessionID:  "g-1",
		Scene:      "ep01-s03",
		Source:     "openai",
		PolicyHash: "sha256:abc",
		Length:     19,
		Terminated: true,
		Reason:     "time jump: 며칠이 지나",
		Violations: 2,
		Critical:   2,
		Kinds:      map[string]int{"time_jump": 1, "unauthorized_character": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAndList(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	if _, err := l.RecordResult(ctx, "g-1", "ep01-s01", "check", "sha256:a", model.GuardResult{Content: "비가 내렸다."}); err != nil {
		t.Fatalf("record: %v", err)
	}
	id, err := l.RecordResult(ctx, "g-2", "ep01-s03", "stream", "sha256:a", stoppedResult())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == 0 {
		t.Error("expected a row id")
	}

	all, err := l.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].SessionID != "g-2" {
		t.Errorf("expected newest first, got %s", all[0].SessionID)
	}

	want := EntryFor("g-2", "ep01-s03", "stream", "sha256:a", stoppedResult())
	want.ID = id
	want.RecordedAt = base.Add(2 * time.Minute)
	if diff := cmp.Diff(want, all[0]); diff != "" {
		t.Errorf("stored entry mismatch (-want +got):\n%s", diff)
	}
}

func TestListFilters(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	for i, sc := range []string{"a", "a", "b"} {
		r := model.GuardResult{Content: "x"}
		if i == 1 {
			r = stoppedResult()
		}
		if _, err := l.RecordResult(ctx, "g", sc, "check", "", r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"scene", Filter{Scene: "a"}, 2},
		{"terminated", Filter{TerminatedOnly: true}, 1},
		{"limit", Filter{Limit: 1}, 1},
		{"unknown scene", Filter{Scene: "z"}, 0},
	}
	for _, tt := range tests {
		got, err := l.List(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: expected %d entries, got %d", tt.name, tt.want, len(got))
		}
	}
}

func TestSummarize(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	empty, err := l.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if empty != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", empty)
	}

	l.RecordResult(ctx, "g-1", "s", "check", "", model.GuardResult{EndConditionReached: true, WasTerminated: true})
	l.RecordResult(ctx, "g-2", "s", "check", "", stoppedResult())

	got, err := l.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	want := Summary{Sessions: 2, Terminated: 2, EndReached: 1, Violations: 2, Critical: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordResult(context.Background(), "g-1", "s", "check", "", model.GuardResult{}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	got, err := l.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"g-1"}, sessionIDs(got), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("unexpected sessions (-want +got):\n%s", diff)
	}
}

func TestRecordRequiresSession(t *testing.T) {
	l := openTemp(t)
	if _, err := l.Record(context.Background(), Entry{Scene: "s"}); err == nil {
		t.Fatal("expected missing session id error")
	}
}

func sessionIDs(entries []Entry) []string {
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.SessionID)
	}
	return ids
}
