package profile

import "fmt"

// InitProfile returns a commented YAML starter template for a new profile.
func InitProfile(name string) string {
	return fmt.Sprintf(`name: %s
description: Custom guard profile

# Stop on every violation instead of recording time jumps and summaries.
# Omit to keep the mode of the policy file.
# strict: true

# Threshold overrides. Omitted fields keep the policy file's values.
thresholds:
  # keyword_overlap: 0.7
  # proportional_cap: 0.8
  # absolute_cap: 12000
  # escalation_distinct: 3

# Extra patterns, appended after the policy file's (Go regexp syntax).
time_jump_patterns: []
#  - name: flashback
#    regex: "몇 해 전"
compression_patterns: []
#  - name: %s_summary
#    regex: "한편 그 무렵"
`, name, name)
}
