package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sceneguard/internal/detect"
)

// ThresholdOverrides lists the thresholds a profile may change.
// Nil fields keep the base config's value.
type ThresholdOverrides struct {
	WindowSize          *int     `yaml:"window_size"`
	KeywordOverlap      *float64 `yaml:"keyword_overlap"`
	MinKeywords         *int     `yaml:"min_keywords"`
	SentenceFallback    *int     `yaml:"sentence_fallback"`
	AbsoluteCap         *int     `yaml:"absolute_cap"`
	ProportionalCap     *float64 `yaml:"proportional_cap"`
	EscalationDistinct  *int     `yaml:"escalation_distinct"`
	MinIdentifierLength *int     `yaml:"min_identifier_length"`
}

// Profile is a named, reusable bundle of mode, thresholds and patterns.
type Profile struct {
	Name                string              `yaml:"name"`
	Description         string              `yaml:"description"`
	Strict              *bool               `yaml:"strict,omitempty"`
	EndMarker           string              `yaml:"end_marker,omitempty"`
	Thresholds          ThresholdOverrides  `yaml:"thresholds"`
	TimeJumpPatterns    []detect.PatternDef `yaml:"time_jump_patterns"`
	CompressionPatterns []detect.PatternDef `yaml:"compression_patterns"`
}

// Dir returns ~/.sceneguard/profiles, or "" if home is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sceneguard", "profiles")
}

// Load loads a profile by name. Checks built-in profiles first,
// then falls back to ~/.sceneguard/profiles/<name>.yaml.
func Load(name string) (*Profile, error) {
	if data, ok := builtinProfiles[name]; ok {
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse built-in profile %q: %w", name, err)
		}
		return &p, nil
	}

	dir := Dir()
	if dir == "" {
		return nil, fmt.Errorf("profile %q not found (no built-in, cannot determine home dir)", name)
	}
	return LoadFile(filepath.Join(dir, name+".yaml"))
}

// LoadFile loads and validates a profile from an explicit path.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profile %q not found", filepath.Base(path))
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns sorted names of all available profiles (built-in + user).
func List() []string {
	seen := make(map[string]bool)
	for name := range builtinProfiles {
		seen[name] = true
	}

	if dir := Dir(); dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
					seen[name[:len(name)-len(ext)]] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that a profile is well-formed.
func Validate(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, err := detect.Compile(p.TimeJumpPatterns); err != nil {
		return fmt.Errorf("profile %s: time_jump_patterns: %w", p.Name, err)
	}
	if _, err := detect.Compile(p.CompressionPatterns); err != nil {
		return fmt.Errorf("profile %s: compression_patterns: %w", p.Name, err)
	}
	return nil
}
