// Package scene loads scene descriptions written by planning tools.
package scene

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/model"
)

// ErrInvalid marks a scene file that parsed but cannot drive a guard.
var ErrInvalid = errors.New("invalid scene")

// Scene is one scene file: the constraints plus the project roster.
type Scene struct {
	ID               string   `yaml:"id" json:"id"`
	Title            string   `yaml:"title,omitempty" json:"title,omitempty"`
	TargetLength     int      `yaml:"target_length" json:"target_length"`
	EndCondition     string   `yaml:"end_condition" json:"end_condition"`
	EndConditionType string   `yaml:"end_condition_type" json:"end_condition_type"`
	Characters       []string `yaml:"characters" json:"characters"`
	Roster           []string `yaml:"roster,omitempty" json:"roster,omitempty"`
	Strict           *bool    `yaml:"strict,omitempty" json:"strict,omitempty"`
}

// Load reads and validates a scene YAML file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scene document. All text fields are
// normalized to NFC so composed and decomposed Hangul compare equal.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if err := s.Prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Prepare normalizes a scene built in code or decoded from another
// encoding, then validates it.
func (s *Scene) Prepare() error {
	s.normalize()
	return s.Validate()
}

// Validate checks the fields a guard depends on.
func (s *Scene) Validate() error {
	if s.TargetLength < 0 {
		return fmt.Errorf("%w: target_length must not be negative, got %d", ErrInvalid, s.TargetLength)
	}
	switch model.EndConditionKind(s.EndConditionType) {
	case "", model.EndDialogue, model.EndAction, model.EndNarration:
	default:
		return fmt.Errorf("%w: end_condition_type must be dialogue, action or narration, got %q", ErrInvalid, s.EndConditionType)
	}
	for i, c := range s.Characters {
		if c == "" {
			return fmt.Errorf("%w: characters[%d] is empty", ErrInvalid, i)
		}
	}
	return nil
}

// Constraints returns the guard's view of the scene.
func (s *Scene) Constraints() model.SceneConstraints {
	return model.SceneConstraints{
		TargetLength:         s.TargetLength,
		EndCondition:         s.EndCondition,
		EndConditionKind:     model.ParseEndConditionKind(s.EndConditionType),
		AuthorizedCharacters: s.Characters,
	}
}

// Options returns the guard options the scene implies: its roster and,
// when set, its mode.
func (s *Scene) Options() []guard.Option {
	var opts []guard.Option
	if len(s.Roster) > 0 {
		opts = append(opts, guard.WithRoster(s.Roster))
	}
	if s.Strict != nil {
		opts = append(opts, guard.WithStrict(*s.Strict))
	}
	return opts
}

// Label returns the ID, or the title when no ID is set.
func (s *Scene) Label() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Title
}

func (s *Scene) normalize() {
	s.EndCondition = NormalizeText(strings.TrimSpace(s.EndCondition))
	s.EndConditionType = strings.ToLower(strings.TrimSpace(s.EndConditionType))
	s.Characters = normalizeIDs(s.Characters)
	s.Roster = normalizeIDs(s.Roster)
}

func normalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, NormalizeText(strings.TrimSpace(id)))
	}
	return out
}

// NormalizeText returns s in Unicode NFC. Apply it to complete text only;
// normalizing stream fragments one by one can differ at their seams.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}
