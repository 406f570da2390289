package scenario

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
	"github.com/ppiankov/sceneguard/internal/scene"
)

// Run executes every case against a fresh guard built from the scenario's
// scene and the given policy. Cases are independent.
func Run(s *Scenario, cfg *policy.PolicyConfig) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	evalCfg := cfg
	if s.Profile != "" {
		p, err := profile.Load(s.Profile)
		if err == nil {
			evalCfg, err = profile.ApplyToPolicy(p, cfg)
		}
		if err != nil {
			result.Error = fmt.Sprintf("profile %s: %v", s.Profile, err)
			result.Failed = result.Total
			return result
		}
	}

	constraints := s.Scene.Constraints()
	for i, c := range s.Cases {
		opts := append([]guard.Option{guard.WithConfig(evalCfg)}, s.Scene.Options()...)
		if c.Strict != nil {
			opts = append(opts, guard.WithStrict(*c.Strict))
		}

		cr := CaseResult{Index: i + 1, Name: c.Name}
		gr, err := runCase(c, constraints, opts)
		if err != nil {
			cr.Failures = []string{err.Error()}
		} else {
			cr.Terminated = gr.WasTerminated
			cr.Reason = gr.TerminationReason
			cr.Violations = countKinds(gr)
			cr.Length = utf8.RuneCountInString(gr.Content)
			cr.Failures = check(c.Expect, gr, cr)
		}

		if len(cr.Failures) == 0 {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func runCase(c Case, constraints model.SceneConstraints, opts []guard.Option) (model.GuardResult, error) {
	if len(c.Fragments) == 0 {
		return guard.CheckComplete(c.Text, constraints, opts...)
	}

	g, err := guard.New(constraints, opts...)
	if err != nil {
		return model.GuardResult{}, err
	}
	stopped := false
	for _, f := range c.Fragments {
		if !g.ProcessFragment(f).ShouldContinue {
			stopped = true
			break
		}
	}
	if !stopped {
		g.Finish()
	}
	return g.Result(), nil
}

func countKinds(r model.GuardResult) map[string]int {
	counts := make(map[string]int)
	for _, v := range r.Violations {
		counts[string(v.Kind)]++
	}
	return counts
}

func check(e Expect, r model.GuardResult, cr CaseResult) []string {
	var failures []string
	if e.Terminated != nil && *e.Terminated != r.WasTerminated {
		failures = append(failures, fmt.Sprintf("terminated: expected %v, got %v", *e.Terminated, r.WasTerminated))
	}
	if e.EndConditionReached != nil && *e.EndConditionReached != r.EndConditionReached {
		failures = append(failures, fmt.Sprintf("end_condition_reached: expected %v, got %v", *e.EndConditionReached, r.EndConditionReached))
	}
	for kind, want := range e.Violations {
		if got := cr.Violations[kind]; got != want {
			failures = append(failures, fmt.Sprintf("violations[%s]: expected %d, got %d", kind, want, got))
		}
	}
	if e.Content != nil && *e.Content != r.Content {
		failures = append(failures, fmt.Sprintf("content: expected %q, got %q", *e.Content, r.Content))
	}
	if e.ReasonContains != "" && !strings.Contains(r.TerminationReason, e.ReasonContains) {
		failures = append(failures, fmt.Sprintf("reason: expected to contain %q, got %q", e.ReasonContains, r.TerminationReason))
	}
	if e.MaxLength > 0 && cr.Length > e.MaxLength {
		failures = append(failures, fmt.Sprintf("length: expected at most %d, got %d", e.MaxLength, cr.Length))
	}
	return failures
}

// Load reads and validates a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	// round-trip through the scene parser for normalization and validation
	raw, err := yaml.Marshal(&s.Scene)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	sc, err := scene.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.Scene = *sc
	return &s, nil
}

// LoadAndRun loads a scenario file and the policy, then runs it.
func LoadAndRun(path, policyPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	result := Run(s, cfg)
	result.File = path
	return result, nil
}
