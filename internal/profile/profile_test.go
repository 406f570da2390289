package profile

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sceneguard/internal/detect"
	"github.com/ppiankov/sceneguard/internal/policy"
)

func TestLoadBuiltinProfiles(t *testing.T) {
	for _, name := range []string{"strict", "lenient", "draft"} {
		p, err := Load(name)
		if err != nil {
			t.Fatalf("failed to load %s profile: %v", name, err)
		}
		if p.Name != name {
			t.Errorf("expected name %s, got %s", name, p.Name)
		}
		if p.Description == "" {
			t.Errorf("%s: expected non-empty description", name)
		}
		if err := Validate(p); err != nil {
			t.Errorf("%s: built-in profile should validate: %v", name, err)
		}
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load("nonexistent-profile"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoadUserProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".sceneguard", "profiles")
	os.MkdirAll(dir, 0700)
	os.WriteFile(filepath.Join(dir, "mine.yaml"), []byte("name: mine\nstrict: true\n"), 0600)

	p, err := Load("mine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Strict == nil || !*p.Strict {
		t.Error("expected strict override")
	}

	found := false
	for _, n := range List() {
		if n == "mine" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected user profile in list, got %v", List())
	}
}

func TestApplyStrictProfile(t *testing.T) {
	p, _ := Load("strict")
	base := policy.DefaultConfig()

	merged, err := ApplyToPolicy(p, base)
	if err != nil {
		t.Fatal(err)
	}
	if !merged.Strict {
		t.Error("expected strict mode")
	}
	if merged.Thresholds.EscalationDistinct != 1 {
		t.Errorf("expected escalation 1, got %d", merged.Thresholds.EscalationDistinct)
	}
	if base.Strict || base.Thresholds.EscalationDistinct != 3 {
		t.Error("base config must not be mutated")
	}
}

func TestApplyDraftProfileAppendsPatterns(t *testing.T) {
	p, _ := Load("draft")
	base := policy.DefaultConfig()
	base.CompressionPatterns = []detect.PatternDef{{Name: "own", Regex: "요컨대"}}

	merged, err := ApplyToPolicy(p, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.CompressionPatterns) != 2 || merged.CompressionPatterns[0].Name != "own" {
		t.Errorf("expected config pattern first then profile pattern, got %+v", merged.CompressionPatterns)
	}
	if len(base.CompressionPatterns) != 1 {
		t.Error("base patterns must not be mutated")
	}
	if merged.Thresholds.KeywordOverlap != 0.6 {
		t.Errorf("expected overlap 0.6, got %v", merged.Thresholds.KeywordOverlap)
	}
	if merged.Thresholds.MinKeywords != 3 {
		t.Errorf("expected untouched min_keywords, got %d", merged.Thresholds.MinKeywords)
	}
}

func TestApplyRejectsInvalidResult(t *testing.T) {
	zero := 0.0
	p := &Profile{Name: "broken", Thresholds: ThresholdOverrides{KeywordOverlap: &zero}}
	if _, err := ApplyToPolicy(p, policy.DefaultConfig()); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidateRejectsBadPattern(t *testing.T) {
	p := &Profile{Name: "x", TimeJumpPatterns: []detect.PatternDef{{Name: "bad", Regex: "("}}}
	if err := Validate(p); err == nil {
		t.Error("expected error for invalid regex")
	}
	if err := Validate(&Profile{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestInitProfileParses(t *testing.T) {
	var p Profile
	if err := yaml.Unmarshal([]byte(InitProfile("custom")), &p); err != nil {
		t.Fatalf("template should parse: %v", err)
	}
	if p.Name != "custom" {
		t.Errorf("expected name custom, got %s", p.Name)
	}
	if err := Validate(&p); err != nil {
		t.Errorf("template should validate: %v", err)
	}
}
