// Package policydiff compares two guard policies field by field.
package policydiff

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ppiankov/sceneguard/internal/detect"
	"github.com/ppiankov/sceneguard/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// PatternChange represents a pattern addition, removal, or modification.
type PatternChange struct {
	Type    string `json:"type"` // "added", "removed", "changed"
	List    string `json:"list"` // "time_jump_patterns", "compression_patterns"
	Pattern string `json:"pattern"`
}

// DiffResult holds the comparison of two PolicyConfigs.
type DiffResult struct {
	OldPath        string          `json:"old_path"`
	NewPath        string          `json:"new_path"`
	Changes        []Change        `json:"changes"`
	PatternChanges []PatternChange `json:"pattern_changes"`
	HasChanges     bool            `json:"has_changes"`
}

// direction says whether a higher value makes the guard stop more often.
type direction int

const (
	neutral direction = iota
	higherIsStricter
	lowerIsStricter
)

// Diff compares two PolicyConfigs and returns the differences.
// "stricter" means the new policy stops scenes more readily.
func Diff(old, new *policy.PolicyConfig) *DiffResult {
	r := &DiffResult{}

	if old.Strict != new.Strict {
		comment := "looser"
		if new.Strict {
			comment = "stricter"
		}
		r.Changes = append(r.Changes, Change{
			Field:   "strict",
			Old:     strconv.FormatBool(old.Strict),
			New:     strconv.FormatBool(new.Strict),
			Comment: comment,
		})
	}
	if old.EndMarker != new.EndMarker {
		r.Changes = append(r.Changes, Change{
			Field: "end_marker",
			Old:   strconv.Quote(old.EndMarker),
			New:   strconv.Quote(new.EndMarker),
		})
	}

	o, n := old.Thresholds, new.Thresholds
	diffInt(r, "thresholds.window_size", o.WindowSize, n.WindowSize, neutral)
	diffFloat(r, "thresholds.keyword_overlap", o.KeywordOverlap, n.KeywordOverlap, lowerIsStricter)
	diffInt(r, "thresholds.min_keywords", o.MinKeywords, n.MinKeywords, lowerIsStricter)
	diffInt(r, "thresholds.sentence_fallback", o.SentenceFallback, n.SentenceFallback, neutral)
	diffInt(r, "thresholds.absolute_cap", o.AbsoluteCap, n.AbsoluteCap, lowerIsStricter)
	diffFloat(r, "thresholds.proportional_cap", o.ProportionalCap, n.ProportionalCap, lowerIsStricter)
	diffInt(r, "thresholds.escalation_distinct", o.EscalationDistinct, n.EscalationDistinct, lowerIsStricter)
	diffInt(r, "thresholds.min_identifier_length", o.MinIdentifierLength, n.MinIdentifierLength, lowerIsStricter)

	diffPatterns(r, "time_jump_patterns", old.TimeJumpPatterns, new.TimeJumpPatterns)
	diffPatterns(r, "compression_patterns", old.CompressionPatterns, new.CompressionPatterns)

	diffMapKeys(r, "alerts", alertKeys(old), alertKeys(new))

	r.HasChanges = len(r.Changes) > 0 || len(r.PatternChanges) > 0
	return r
}

func diffInt(r *DiffResult, field string, old, new int, dir direction) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     strconv.Itoa(old),
			New:     strconv.Itoa(new),
			Comment: comment(new > old, dir),
		})
	}
}

func diffFloat(r *DiffResult, field string, old, new float64, dir direction) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     strconv.FormatFloat(old, 'g', -1, 64),
			New:     strconv.FormatFloat(new, 'g', -1, 64),
			Comment: comment(new > old, dir),
		})
	}
}

func comment(increased bool, dir direction) string {
	switch dir {
	case higherIsStricter:
		if increased {
			return "stricter"
		}
		return "looser"
	case lowerIsStricter:
		if increased {
			return "looser"
		}
		return "stricter"
	default:
		return ""
	}
}

func diffPatterns(r *DiffResult, list string, oldDefs, newDefs []detect.PatternDef) {
	oldMap := make(map[string]detect.PatternDef)
	for _, p := range oldDefs {
		oldMap[p.Name] = p
	}
	newMap := make(map[string]detect.PatternDef)
	for _, p := range newDefs {
		newMap[p.Name] = p
	}

	// Check for added and changed
	for _, p := range newDefs {
		if prev, exists := oldMap[p.Name]; exists {
			if prev.Regex != p.Regex {
				r.PatternChanges = append(r.PatternChanges, PatternChange{
					Type:    "changed",
					List:    list,
					Pattern: fmt.Sprintf("%s: /%s/ (was: /%s/)", p.Name, p.Regex, prev.Regex),
				})
			}
		} else {
			r.PatternChanges = append(r.PatternChanges, PatternChange{
				Type:    "added",
				List:    list,
				Pattern: fmt.Sprintf("%s: /%s/", p.Name, p.Regex),
			})
		}
	}

	// Check for removed
	for _, p := range oldDefs {
		if _, exists := newMap[p.Name]; !exists {
			r.PatternChanges = append(r.PatternChanges, PatternChange{
				Type:    "removed",
				List:    list,
				Pattern: fmt.Sprintf("%s: /%s/", p.Name, p.Regex),
			})
		}
	}
}

func diffMapKeys(r *DiffResult, section string, oldKeys, newKeys []string) {
	oldSet := make(map[string]bool)
	for _, k := range oldKeys {
		oldSet[k] = true
	}
	newSet := make(map[string]bool)
	for _, k := range newKeys {
		newSet[k] = true
	}

	for _, k := range newKeys {
		if !oldSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, New: k, Comment: "added"})
		}
	}
	for _, k := range oldKeys {
		if !newSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, Old: k, Comment: "removed"})
		}
	}
}

func alertKeys(cfg *policy.PolicyConfig) []string {
	keys := make([]string, 0, len(cfg.Alerts))
	for _, a := range cfg.Alerts {
		keys = append(keys, a.URL)
	}
	sort.Strings(keys)
	return keys
}
