package profile

import (
	"fmt"

	"github.com/ppiankov/sceneguard/internal/policy"
)

// ApplyToPolicy overlays a profile onto a config. Patterns are appended
// after the config's own. Returns a new config; the input is not mutated.
// The merged config is validated.
func ApplyToPolicy(p *Profile, cfg *policy.PolicyConfig) (*policy.PolicyConfig, error) {
	merged := *cfg
	merged.TimeJumpPatterns = append(append(merged.TimeJumpPatterns[:0:0], cfg.TimeJumpPatterns...), p.TimeJumpPatterns...)
	merged.CompressionPatterns = append(append(merged.CompressionPatterns[:0:0], cfg.CompressionPatterns...), p.CompressionPatterns...)

	if p.Strict != nil {
		merged.Strict = *p.Strict
	}
	if p.EndMarker != "" {
		merged.EndMarker = p.EndMarker
	}

	o := p.Thresholds
	t := &merged.Thresholds
	setInt(&t.WindowSize, o.WindowSize)
	setFloat(&t.KeywordOverlap, o.KeywordOverlap)
	setInt(&t.MinKeywords, o.MinKeywords)
	setInt(&t.SentenceFallback, o.SentenceFallback)
	setInt(&t.AbsoluteCap, o.AbsoluteCap)
	setFloat(&t.ProportionalCap, o.ProportionalCap)
	setInt(&t.EscalationDistinct, o.EscalationDistinct)
	setInt(&t.MinIdentifierLength, o.MinIdentifierLength)

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return &merged, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
