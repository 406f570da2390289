package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/profile"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCheckCmd)
	profileCmd.AddCommand(profileShowCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage guard profiles",
	Long:  "List, check, and inspect guard profiles: named bundles of mode, thresholds and patterns.",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available guard profiles",
	RunE:  runProfileList,
}

var profileCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Validate a profile loads cleanly",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCheck,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show what a profile changes",
	Long:  "Loads a profile and displays its overrides. Use --profile on check/stream/generate to apply it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	names := profile.List()
	if len(names) == 0 {
		fmt.Fprintln(w, "No profiles available.")
		return nil
	}

	fmt.Fprintln(w, "Available profiles:")
	for _, name := range names {
		p, err := profile.Load(name)
		if err != nil {
			fmt.Fprintf(w, "  %-15s (error loading: %v)\n", name, err)
			continue
		}
		fmt.Fprintf(w, "  %-15s %s\n", name, p.Description)
	}
	return nil
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	name := args[0]
	p, err := profile.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load profile %q: %w", name, err)
	}
	if err := profile.Validate(p); err != nil {
		return fmt.Errorf("profile %q is invalid: %w", name, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Profile %q (%s) is valid.\n", name, p.Name)
	fmt.Fprintf(w, "  Time jump patterns:   %d\n", len(p.TimeJumpPatterns))
	fmt.Fprintf(w, "  Compression patterns: %d\n", len(p.CompressionPatterns))
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	name := args[0]
	p, err := profile.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load profile %q: %w", name, err)
	}
	writeProfile(cmd.OutOrStdout(), name, p)
	return nil
}

func writeProfile(w io.Writer, name string, p *profile.Profile) {
	fmt.Fprintf(w, "Profile: %s (%s)\n\n", p.Name, p.Description)

	if p.Strict != nil {
		mode := "lenient"
		if *p.Strict {
			mode = "strict"
		}
		fmt.Fprintf(w, "Mode: %s\n\n", mode)
	}
	if p.EndMarker != "" {
		fmt.Fprintf(w, "End marker: %q\n\n", p.EndMarker)
	}

	t := p.Thresholds
	var lines []string
	addInt := func(label string, v *int) {
		if v != nil {
			lines = append(lines, fmt.Sprintf("  %-22s %d", label, *v))
		}
	}
	addFloat := func(label string, v *float64) {
		if v != nil {
			lines = append(lines, fmt.Sprintf("  %-22s %g", label, *v))
		}
	}
	addInt("window_size", t.WindowSize)
	addFloat("keyword_overlap", t.KeywordOverlap)
	addInt("min_keywords", t.MinKeywords)
	addInt("sentence_fallback", t.SentenceFallback)
	addInt("absolute_cap", t.AbsoluteCap)
	addFloat("proportional_cap", t.ProportionalCap)
	addInt("escalation_distinct", t.EscalationDistinct)
	addInt("min_identifier_length", t.MinIdentifierLength)
	if len(lines) > 0 {
		fmt.Fprintln(w, "Thresholds:")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
		fmt.Fprintln(w)
	}

	if len(p.TimeJumpPatterns) > 0 {
		fmt.Fprintln(w, "Time jump patterns:")
		for _, pd := range p.TimeJumpPatterns {
			fmt.Fprintf(w, "  - %s: /%s/\n", pd.Name, pd.Regex)
		}
		fmt.Fprintln(w)
	}
	if len(p.CompressionPatterns) > 0 {
		fmt.Fprintln(w, "Compression patterns:")
		for _, pd := range p.CompressionPatterns {
			fmt.Fprintf(w, "  - %s: /%s/\n", pd.Name, pd.Regex)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "To apply at runtime:")
	fmt.Fprintf(w, "  sceneguard check --profile %s --scene <scene.yaml> <text>\n", name)
	fmt.Fprintf(w, "  sceneguard intercept --profile %s --scene <scene.yaml>\n", name)
}
