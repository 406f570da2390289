package policydiff

import (
	"strings"
	"testing"

	"github.com/ppiankov/sceneguard/internal/alert"
	"github.com/ppiankov/sceneguard/internal/detect"
	"github.com/ppiankov/sceneguard/internal/policy"
)

func findChange(r *DiffResult, field string) (Change, bool) {
	for _, c := range r.Changes {
		if c.Field == field {
			return c, true
		}
	}
	return Change{}, false
}

func TestIdenticalPoliciesNoChanges(t *testing.T) {
	r := Diff(policy.DefaultConfig(), policy.DefaultConfig())
	if r.HasChanges {
		t.Errorf("expected no changes, got %d changes + %d pattern changes",
			len(r.Changes), len(r.PatternChanges))
	}
}

func TestThresholdDirections(t *testing.T) {
	a := policy.DefaultConfig()
	b := policy.DefaultConfig()
	b.Thresholds.AbsoluteCap = a.Thresholds.AbsoluteCap / 2
	b.Thresholds.KeywordOverlap = 0.9
	b.Thresholds.WindowSize = a.Thresholds.WindowSize * 2

	r := Diff(a, b)
	tests := map[string]string{
		"thresholds.absolute_cap":    "stricter",
		"thresholds.keyword_overlap": "looser",
		"thresholds.window_size":     "",
	}
	for field, want := range tests {
		c, ok := findChange(r, field)
		if !ok {
			t.Errorf("%s change not found", field)
			continue
		}
		if c.Comment != want {
			t.Errorf("%s: expected comment %q, got %q", field, want, c.Comment)
		}
	}
}

func TestStrictModeChange(t *testing.T) {
	a := policy.DefaultConfig()
	b := policy.DefaultConfig()
	b.Strict = true

	c, ok := findChange(Diff(a, b), "strict")
	if !ok {
		t.Fatal("strict change not found")
	}
	if c.Old != "false" || c.New != "true" || c.Comment != "stricter" {
		t.Errorf("unexpected change %+v", c)
	}
	if c, _ := findChange(Diff(b, a), "strict"); c.Comment != "looser" {
		t.Errorf("expected looser in reverse, got %q", c.Comment)
	}
}

func TestEndMarkerChange(t *testing.T) {
	a := policy.DefaultConfig()
	b := policy.DefaultConfig()
	b.EndMarker = " [끝]"

	c, ok := findChange(Diff(a, b), "end_marker")
	if !ok {
		t.Fatal("end_marker change not found")
	}
	if c.New != `" [끝]"` {
		t.Errorf("expected quoted marker, got %s", c.New)
	}
}

func TestPatternChanges(t *testing.T) {
	a := policy.DefaultConfig()
	a.TimeJumpPatterns = []detect.PatternDef{
		{Name: "flashforward", Regex: "훗날"},
		{Name: "years", Regex: "몇 해가 지나"},
	}
	b := policy.DefaultConfig()
	b.TimeJumpPatterns = []detect.PatternDef{
		{Name: "flashforward", Regex: "훗날|먼 훗날"},
	}
	b.CompressionPatterns = []detect.PatternDef{{Name: "meanwhile", Regex: "한편 그 무렵"}}

	r := Diff(a, b)
	counts := map[string]int{}
	for _, pc := range r.PatternChanges {
		counts[pc.List+"/"+pc.Type]++
	}
	want := map[string]int{
		"time_jump_patterns/changed": 1,
		"time_jump_patterns/removed": 1,
		"compression_patterns/added": 1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%s: expected %d, got %d", k, n, counts[k])
		}
	}
}

func TestAlertChanges(t *testing.T) {
	a := policy.DefaultConfig()
	b := policy.DefaultConfig()
	b.Alerts = []alert.AlertConfig{{URL: "https://hooks.example.com/sg", Format: "slack"}}

	c, ok := findChange(Diff(a, b), "alerts")
	if !ok || c.Comment != "added" || c.New != "https://hooks.example.com/sg" {
		t.Errorf("expected added alert, got %+v", c)
	}
}

func TestFormatText(t *testing.T) {
	a := policy.DefaultConfig()
	b := policy.DefaultConfig()
	b.Strict = true
	b.Thresholds.ProportionalCap = 0.7
	b.TimeJumpPatterns = []detect.PatternDef{{Name: "flashforward", Regex: "훗날"}}

	r := Diff(a, b)
	r.OldPath, r.NewPath = "old.yaml", "new.yaml"
	out := FormatText(r)
	for _, want := range []string{"old.yaml → new.yaml", "strict:", "proportional_cap:", "(stricter)", "+ flashforward: /훗날/"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	none := FormatText(Diff(a, a))
	if !strings.Contains(none, "No changes detected") {
		t.Errorf("expected no-changes message, got %q", none)
	}
}

func TestFormatJSON(t *testing.T) {
	b := policy.DefaultConfig()
	b.Strict = true
	out, err := FormatJSON(Diff(policy.DefaultConfig(), b))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"has_changes": true`) {
		t.Errorf("unexpected JSON %s", out)
	}
}
