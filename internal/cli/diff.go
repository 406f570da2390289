package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/policydiff"
)

var (
	diffFormat     string
	diffOldProfile string
	diffNewProfile string
)

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	diffCmd.Flags().StringVar(&diffOldProfile, "old-profile", "", "Profile applied to the old policy")
	diffCmd.Flags().StringVar(&diffNewProfile, "new-profile", "", "Profile applied to the new policy")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.yaml> <new.yaml>",
	Short: "Compare two policy files and show changes",
	Long:  "Loads two policy YAML files and shows what changed in human-readable terms:\nstrict mode, end marker, thresholds, patterns added/removed/changed, alerts.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	return writeDiff(cmd.OutOrStdout(), args[0], args[1], diffOldProfile, diffNewProfile, diffFormat)
}

func writeDiff(w io.Writer, oldPath, newPath, oldProfile, newProfile, format string) error {
	oldCfg, _, err := loadPolicy(oldPath, oldProfile)
	if err != nil {
		return fmt.Errorf("old policy: %w", err)
	}
	newCfg, _, err := loadPolicy(newPath, newProfile)
	if err != nil {
		return fmt.Errorf("new policy: %w", err)
	}

	result := policydiff.Diff(oldCfg, newCfg)
	result.OldPath = oldPath
	result.NewPath = newPath

	switch format {
	case "json":
		out, err := policydiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
	default:
		fmt.Fprint(w, policydiff.FormatText(result))
	}
	return nil
}
