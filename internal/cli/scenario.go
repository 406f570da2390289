package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/scenario"
)

var (
	scenarioGlob   string
	scenarioPolicy string
	scenarioFormat string
)

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.Flags().StringVar(&scenarioGlob, "scenario", "", "Glob pattern for scenario YAML files (required)")
	scenarioCmd.Flags().StringVar(&scenarioPolicy, "policy", "", "Path to policy YAML (optional)")
	scenarioCmd.Flags().StringVarP(&scenarioFormat, "format", "f", "text", "Output format (text|json)")
	scenarioCmd.MarkFlagRequired("scenario")
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run guard assertions from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, feeds each case's\n" +
		"fragments through a fresh guard, and reports pass/fail.\n\n" +
		"Exit code 0 if all cases pass, 1 if any fail.\n" +
		"Use in CI to gate threshold or pattern changes.",
	RunE: runScenario,
}

func runScenario(cmd *cobra.Command, args []string) error {
	results, err := runScenarios(scenarioGlob, scenarioPolicy)
	if err != nil {
		return err
	}

	switch scenarioFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), scenario.FormatText(results))
	}

	// Exit 1 if any scenario has failures
	for _, r := range results {
		if r.Failed > 0 {
			os.Exit(1)
		}
	}
	return nil
}

func runScenarios(pattern, policyPath string) ([]*scenario.RunResult, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no scenario files match pattern: %s", pattern)
	}

	var results []*scenario.RunResult
	for _, path := range matches {
		r, err := scenario.LoadAndRun(path, policyPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}
	return results, nil
}
