package guard

import (
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
)

// Option configures a Guard at construction time.
type Option func(*guardConfig)

type guardConfig struct {
	policy       *policy.PolicyConfig
	roster       []string
	strict       *bool
	onViolation  func(model.Violation)
	onEndReached func(string)
}

// WithConfig sets thresholds, end marker and extra patterns.
// Without it the built-in defaults apply.
func WithConfig(cfg *policy.PolicyConfig) Option {
	return func(c *guardConfig) { c.policy = cfg }
}

// WithRoster supplies the project-wide character roster.
// Without a roster unauthorized-character detection is disabled.
func WithRoster(roster []string) Option {
	return func(c *guardConfig) { c.roster = roster }
}

// WithStrict overrides the mode set in the policy config.
func WithStrict(strict bool) Option {
	return func(c *guardConfig) { c.strict = &strict }
}

// WithOnViolation registers a callback invoked for every recorded violation.
func WithOnViolation(fn func(model.Violation)) Option {
	return func(c *guardConfig) { c.onViolation = fn }
}

// WithOnEndConditionMet registers a callback invoked with the final content
// when the end condition is reached.
func WithOnEndConditionMet(fn func(content string)) Option {
	return func(c *guardConfig) { c.onEndReached = fn }
}
