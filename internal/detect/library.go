package detect

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

// PatternDef defines a custom pattern from config.
type PatternDef struct {
	Name  string `yaml:"name" json:"name"`
	Regex string `yaml:"regex" json:"regex"`
}

// Pattern is a compiled surface pattern.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// Library is an ordered set of patterns that all report the same kind.
type Library struct {
	Kind     model.ViolationKind
	patterns []Pattern
}

// Hit is one pattern occurrence. Position is a rune offset into the
// scanned text.
type Hit struct {
	Pattern  string
	Position int
	Length   int
	Matched  string
}

// NewLibrary combines built-in patterns with operator-defined extras.
func NewLibrary(kind model.ViolationKind, builtin []Pattern, extra []Pattern) *Library {
	patterns := make([]Pattern, 0, len(builtin)+len(extra))
	patterns = append(patterns, builtin...)
	patterns = append(patterns, extra...)
	return &Library{Kind: kind, patterns: patterns}
}

// Len returns the number of patterns in the library.
func (l *Library) Len() int {
	return len(l.patterns)
}

// Scan finds every pattern occurrence in text, sorted earliest first.
// Overlapping hits describe the same phrase, so only the one starting
// earliest is kept; on a tie the longer hit wins, then library order.
func (l *Library) Scan(text string) []Hit {
	var hits []Hit
	for _, p := range l.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			if loc[1] <= loc[0] {
				continue
			}
			matched := text[loc[0]:loc[1]]
			hits = append(hits, Hit{
				Pattern:  p.Name,
				Position: RuneOffset(text, loc[0]),
				Length:   utf8.RuneCountInString(matched),
				Matched:  matched,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].Length > hits[j].Length
	})

	kept := hits[:0]
	end := -1
	for _, h := range hits {
		if h.Position < end {
			continue
		}
		kept = append(kept, h)
		end = h.Position + h.Length
	}
	return kept
}

// First returns the earliest hit as a DetectionResult.
func (l *Library) First(text string) model.DetectionResult {
	hits := l.Scan(text)
	if len(hits) == 0 {
		return model.NotDetected
	}
	h := hits[0]
	return model.DetectionResult{Detected: true, Position: h.Position, Length: h.Length, Matched: h.Matched}
}

// Compile validates and compiles extra patterns from config.
func Compile(defs []PatternDef) ([]Pattern, error) {
	var patterns []Pattern
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("patterns[%d]: name is required", i)
		}
		if def.Regex == "" {
			return nil, fmt.Errorf("patterns[%d]: regex is required", i)
		}
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d] %q: invalid regex: %w", i, def.Name, err)
		}
		patterns = append(patterns, Pattern{Name: def.Name, Regex: re})
	}
	return patterns, nil
}

func mustPattern(name, expr string) Pattern {
	return Pattern{Name: name, Regex: regexp.MustCompile(expr)}
}
