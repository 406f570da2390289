package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sceneguard/internal/alert"
	"github.com/ppiankov/sceneguard/internal/detect"
)

// DefaultEndMarker is appended to the text whenever the guard stops a scene.
const DefaultEndMarker = "\n\n[SCENE END]"

// Thresholds holds the tunable numbers of the detector pipeline.
// Defaults are carried over from the original heuristics unchanged.
type Thresholds struct {
	WindowSize          int     `yaml:"window_size" json:"window_size"`
	KeywordOverlap      float64 `yaml:"keyword_overlap" json:"keyword_overlap"`
	MinKeywords         int     `yaml:"min_keywords" json:"min_keywords"`
	SentenceFallback    int     `yaml:"sentence_fallback" json:"sentence_fallback"`
	AbsoluteCap         int     `yaml:"absolute_cap" json:"absolute_cap"`
	ProportionalCap     float64 `yaml:"proportional_cap" json:"proportional_cap"`
	EscalationDistinct  int     `yaml:"escalation_distinct" json:"escalation_distinct"`
	MinIdentifierLength int     `yaml:"min_identifier_length" json:"min_identifier_length"`
}

// LengthCap returns the governing length cap in runes for a target length:
// the smaller of the absolute cap and the proportional cap.
// A non-positive target leaves only the absolute cap.
func (t Thresholds) LengthCap(target int) int {
	limit := t.AbsoluteCap
	if target > 0 {
		// subtract a hair before Ceil to absorb float error (0.8*1000 must stay 800)
		p := int(math.Ceil(t.ProportionalCap*float64(target) - 1e-9))
		if p < limit {
			limit = p
		}
	}
	return limit
}

// PolicyConfig holds all configurable guard parameters.
type PolicyConfig struct {
	Strict              bool                `yaml:"strict"`
	EndMarker           string              `yaml:"end_marker"`
	Thresholds          Thresholds          `yaml:"thresholds"`
	TimeJumpPatterns    []detect.PatternDef `yaml:"time_jump_patterns"`
	CompressionPatterns []detect.PatternDef `yaml:"compression_patterns"`
	Alerts              []alert.AlertConfig `yaml:"alerts"`
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindowSize:          1000,
		KeywordOverlap:      0.7,
		MinKeywords:         3,
		SentenceFallback:    50,
		AbsoluteCap:         12000,
		ProportionalCap:     0.8,
		EscalationDistinct:  3,
		MinIdentifierLength: 2,
	}
}

// DefaultConfig returns the built-in guard config.
func DefaultConfig() *PolicyConfig {
	return &PolicyConfig{
		EndMarker:  DefaultEndMarker,
		Thresholds: DefaultThresholds(),
	}
}

// Validate rejects configs that would break the guard's liveness or
// matching guarantees.
func (c *PolicyConfig) Validate() error {
	t := c.Thresholds
	if t.WindowSize < 100 {
		return fmt.Errorf("thresholds.window_size must be at least 100, got %d", t.WindowSize)
	}
	if t.KeywordOverlap <= 0 || t.KeywordOverlap > 1 {
		return fmt.Errorf("thresholds.keyword_overlap must be in (0, 1], got %v", t.KeywordOverlap)
	}
	if t.MinKeywords < 1 {
		return fmt.Errorf("thresholds.min_keywords must be positive, got %d", t.MinKeywords)
	}
	if t.SentenceFallback < 0 {
		return fmt.Errorf("thresholds.sentence_fallback must not be negative, got %d", t.SentenceFallback)
	}
	if t.ProportionalCap <= 0 {
		return fmt.Errorf("thresholds.proportional_cap must be positive, got %v", t.ProportionalCap)
	}
	if t.EscalationDistinct < 1 {
		return fmt.Errorf("thresholds.escalation_distinct must be positive, got %d", t.EscalationDistinct)
	}
	if t.MinIdentifierLength < 1 {
		return fmt.Errorf("thresholds.min_identifier_length must be positive, got %d", t.MinIdentifierLength)
	}
	if c.EndMarker == "" {
		return fmt.Errorf("end_marker must not be empty")
	}
	if t.AbsoluteCap <= utf8.RuneCountInString(c.EndMarker) {
		return fmt.Errorf("thresholds.absolute_cap (%d) must exceed the end marker length", t.AbsoluteCap)
	}
	if _, err := detect.Compile(c.TimeJumpPatterns); err != nil {
		return fmt.Errorf("time_jump_patterns: %w", err)
	}
	if _, err := detect.Compile(c.CompressionPatterns); err != nil {
		return fmt.Errorf("compression_patterns: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.sceneguard/policy.yaml, or "" if home is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sceneguard", "policy.yaml")
}

// LoadConfig loads guard configuration from a YAML file.
// Empty path falls back to SCENEGUARD_POLICY, then ~/.sceneguard/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*PolicyConfig, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads guard configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*PolicyConfig, string, error) {
	if path == "" {
		path = os.Getenv("SCENEGUARD_POLICY")
	}
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return DefaultConfig(), hashBytes(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read policy config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid policy config %s: %w", path, err)
	}

	return cfg, hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// DefaultConfigYAML returns a commented YAML string for init-policy.
func DefaultConfigYAML() string {
	return `# sceneguard policy configuration
# Generated by: sceneguard init-policy
#
# Check order on every fragment (cannot be changed):
#   1. End condition      -> truncate at match, stop
#   2. Time jump          -> strict: truncate before match, stop; lenient: record
#   3. Compression        -> strict: truncate before match, stop; lenient: record
#   4. Length cap         -> always truncate at cap, stop
#   5. Unauthorized cast  -> record; strict: stop after escalation_distinct names

# Strict mode stops on every detected violation, not only length and end condition.
strict: false

# Appended to the text whenever the guard stops a scene.
end_marker: "\n\n[SCENE END]"

thresholds:
  # Trailing window (characters) scanned on every fragment.
  window_size: 1000
  # Fraction of end-condition keywords that must appear for a fuzzy match.
  keyword_overlap: 0.7
  # End conditions with fewer keywords never use the fuzzy match.
  min_keywords: 3
  # Characters kept after the last keyword when no sentence terminator follows.
  sentence_fallback: 50
  # Hard ceiling for every scene, regardless of target length.
  absolute_cap: 12000
  # Cap relative to the scene's target length. The smaller cap governs.
  proportional_cap: 0.8
  # Strict mode stops after this many distinct unauthorized characters.
  escalation_distinct: 3
  # Roster identifiers shorter than this are never searched.
  min_identifier_length: 2

# Extra surface patterns (Go regexp syntax).
time_jump_patterns: []
#  - name: flashforward
#    regex: "훗날"
compression_patterns: []

# Webhook alerts on guard stops and critical violations.
# events: terminated | critical | end_condition
alerts: []
#  - url: https://hooks.slack.com/services/...
#    format: slack
#    events: [terminated]
`
}
