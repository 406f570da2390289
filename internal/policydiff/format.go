package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s → %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s → %s\n", r.OldPath, r.NewPath)

	thresholds := filterChanges(r.Changes, "thresholds.")
	topLevel := filterTopLevel(r.Changes)
	alerts := filterChanges(r.Changes, "alerts")

	if len(topLevel) > 0 {
		b.WriteString("\n")
		for _, c := range topLevel {
			fmt.Fprintf(&b, "  %-24s %s → %s", c.Field+":", c.Old, c.New)
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(thresholds) > 0 {
		b.WriteString("\n  Thresholds:\n")
		for _, c := range thresholds {
			name := strings.TrimPrefix(c.Field, "thresholds.")
			fmt.Fprintf(&b, "    %-22s %s → %s", name+":", c.Old, c.New)
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	for _, list := range []string{"time_jump_patterns", "compression_patterns"} {
		var lines []string
		for _, pc := range r.PatternChanges {
			if pc.List != list {
				continue
			}
			switch pc.Type {
			case "added":
				lines = append(lines, "    + "+pc.Pattern)
			case "removed":
				lines = append(lines, "    - "+pc.Pattern)
			case "changed":
				lines = append(lines, "    ~ "+pc.Pattern)
			}
		}
		if len(lines) > 0 {
			fmt.Fprintf(&b, "\n  %s:\n%s\n", list, strings.Join(lines, "\n"))
		}
	}

	if len(alerts) > 0 {
		b.WriteString("\n")
		for _, c := range alerts {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "  %s: + %s\n", c.Field, c.New)
			case "removed":
				fmt.Fprintf(&b, "  %s: - %s\n", c.Field, c.Old)
			}
		}
	}

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func filterChanges(changes []Change, prefixes ...string) []Change {
	var out []Change
	for _, c := range changes {
		for _, p := range prefixes {
			if strings.HasPrefix(c.Field, p) || c.Field == p {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func filterTopLevel(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if !strings.Contains(c.Field, ".") && c.Field != "alerts" {
			out = append(out, c)
		}
	}
	return out
}
