package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/scene"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func boolPtr(b bool) *bool { return &b }

func testScene() scene.Scene {
	return scene.Scene{
		ID:           "ch01-s01",
		TargetLength: 2000,
		EndCondition: "문을 닫고 돌아섰다.",
		Characters:   []string{"지훈", "수아"},
		Roster:       []string{"지훈", "수아", "민준"},
	}
}

func TestAllCasesPass(t *testing.T) {
	s := &Scenario{
		Name:  "end condition",
		Scene: testScene(),
		Cases: []Case{
			{
				Name:      "exact",
				Fragments: []string{"지훈은 ", "문을 닫고 돌아섰다. 더."},
				Expect:    Expect{Terminated: boolPtr(true), EndConditionReached: boolPtr(true)},
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 1 {
		t.Errorf("expected 1 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	s := &Scenario{
		Name:  "wrong expectation",
		Scene: testScene(),
		Cases: []Case{
			{
				Fragments: []string{"지훈은 창밖을 보았다."},
				Expect:    Expect{Terminated: boolPtr(true)},
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	if !strings.Contains(result.Cases[0].Failures[0], "terminated") {
		t.Errorf("unexpected failure text %q", result.Cases[0].Failures[0])
	}
}

func TestStrictOverridePerCase(t *testing.T) {
	s := &Scenario{
		Name:  "time jump",
		Scene: testScene(),
		Cases: []Case{
			{
				Name:      "lenient",
				Fragments: []string{"지훈은 기다렸다. ", "며칠이 지나 수아가 왔다."},
				Expect:    Expect{Terminated: boolPtr(false), Violations: map[string]int{"time_jump": 1}},
			},
			{
				Name:      "strict",
				Strict:    boolPtr(true),
				Fragments: []string{"지훈은 기다렸다. ", "며칠이 지나 수아가 왔다."},
				Expect: Expect{
					Terminated:     boolPtr(true),
					ReasonContains: "time jump",
					Content:        strPtr("지훈은 기다렸다. " + policy.DefaultEndMarker),
				},
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
}

func strPtr(s string) *string { return &s }

func TestTextCaseUsesPostProcessCheck(t *testing.T) {
	s := &Scenario{
		Name:  "imported",
		Scene: testScene(),
		Cases: []Case{
			{
				Text:   "민준이 들어왔다. 민준은 앉았다.",
				Expect: Expect{Violations: map[string]int{"unauthorized_character": 1}, MaxLength: 100},
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
	if result.Cases[0].Length != 18 {
		t.Errorf("expected length 18, got %d", result.Cases[0].Length)
	}
}

func TestScenarioProfile(t *testing.T) {
	s := &Scenario{
		Name:    "strict profile",
		Profile: "strict",
		Scene:   testScene(),
		Cases: []Case{
			{
				Fragments: []string{"민준이 들어왔다."},
				Expect:    Expect{Terminated: boolPtr(true), Violations: map[string]int{"unauthorized_character": 1}},
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected strict profile to escalate on the first stray character, got %+v", result.Cases)
	}
}

func TestUnknownProfileFailsAllCases(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s := &Scenario{Name: "x", Profile: "no-such", Cases: []Case{{}, {}}}
	result := Run(s, policy.DefaultConfig())
	if result.Failed != 2 || result.Error == "" {
		t.Errorf("expected both cases failed with error, got %+v", result)
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "test.yaml", `
name: "file test"
scene:
  id: s1
  target_length: 100
  end_condition: "문을 닫고 돌아섰다."
cases:
  - name: cap
    fragments: ["가나다라마바사아자차", "가나다라마바사아자차", "가나다라마바사아자차", "가나다라마바사아자차",
                "가나다라마바사아자차", "가나다라마바사아자차", "가나다라마바사아자차", "가나다라마바사아자차",
                "가나다라마바사아자차"]
    expect:
      terminated: true
      max_length: 80
      violations: {scope_exceeded: 1}
`)

	result, err := LoadAndRun(path, filepath.Join(dir, "no-policy.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
	if result.File != path {
		t.Errorf("expected file path set, got %q", result.File)
	}
}

func TestInvalidScenarioYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad.yaml", ":::not yaml\x00")
	if _, err := LoadAndRun(path, ""); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestInvalidSceneRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad-scene.yaml", "name: x\nscene:\n  end_condition_type: monologue\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid scene")
	}
}

func TestEmptyCasesList(t *testing.T) {
	result := Run(&Scenario{Name: "empty"}, policy.DefaultConfig())
	if result.Total != 0 || result.Failed != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "ok", Total: 1, Passed: 1},
		{Name: "bad", Total: 1, Failed: 1, Cases: []CaseResult{{Index: 1, Failures: []string{"terminated: expected true, got false"}}}},
	}
	out := FormatText(results)
	if !strings.Contains(out, "PASS  ok (1/1)") {
		t.Errorf("expected pass line, got:\n%s", out)
	}
	if !strings.Contains(out, "FAIL  case 1: terminated") {
		t.Errorf("expected failure detail, got:\n%s", out)
	}
	if !strings.Contains(out, "1 of 2 cases passed. 1 of 2 scenarios failed.") {
		t.Errorf("expected totals, got:\n%s", out)
	}
}
