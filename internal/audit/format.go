package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No entries found.\n", result.SessionID)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	scene := result.Entries[0].Scene
	b.WriteString(fmt.Sprintf("Session: %s | Scene: %s | %s–%s UTC\n", result.SessionID, labelOr(scene, "-"), first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		label := strings.ToUpper(e.Event)
		if e.Kind != "" {
			label = e.Kind
		}
		pos := ""
		if e.Event == EventViolation {
			pos = fmt.Sprintf("@%d", e.Position)
		}
		b.WriteString(fmt.Sprintf("%-10s %-24s %-7s %s\n", ts, label, pos, truncate(e.Reason, 48)))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	parts := []string{}
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByKind[k], k))
	}
	if len(parts) == 0 {
		parts = append(parts, "no violations")
	}

	outcome := "completed"
	if s.Stopped {
		outcome = "stopped: " + s.StopReason
	}
	return fmt.Sprintf("Summary: %s | %s | %d characters\n",
		strings.Join(parts, ", "), outcome, s.FinalLength)
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// truncate shortens s to max characters without splitting a rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
