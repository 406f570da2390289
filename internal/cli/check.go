package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/scene"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

var (
	checkFlags          runFlags
	checkFailOnCritical bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkFlags.register(checkCmd)
	checkCmd.Flags().BoolVar(&checkFailOnCritical, "fail-on-critical", false, "Exit non-zero when a critical violation was recorded")
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check finished scene text against a scene file",
	Long: "Runs the streaming guard once over complete text (a file, or stdin when\n" +
		"omitted or \"-\"). The guarded text goes to stdout, the report to stderr.\n" +
		"With --format json the full verdict goes to stdout instead.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	data, err := readInput(name)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	sessionID, result, err := checkText(cmd.Context(), &checkFlags, string(data))
	if err != nil {
		return err
	}
	if err := report(cmd.OutOrStdout(), cmd.ErrOrStderr(), checkFlags.format, sessionID, result); err != nil {
		return err
	}
	if checkFailOnCritical && result.HasCritical() {
		return fmt.Errorf("critical violations recorded")
	}
	return nil
}

func checkText(ctx context.Context, f *runFlags, text string) (string, model.GuardResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := f.load()
	if err != nil {
		return "", model.GuardResult{}, err
	}
	result, err := guard.CheckComplete(scene.NormalizeText(text), s.scene.Constraints(), f.options(s)...)
	if err != nil {
		return "", model.GuardResult{}, err
	}
	sessionID := tracer.NewSessionID()
	f.record(ctx, s, sessionID, "check", result)
	return sessionID, result, nil
}

// report writes the content to out and the text report to errOut, or the
// whole JSON verdict to out.
func report(out, errOut io.Writer, format, sessionID string, r model.GuardResult) error {
	if format == "json" {
		return writeReport(out, format, sessionID, r)
	}
	if _, err := io.WriteString(out, r.Content); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return writeReport(errOut, format, sessionID, r)
}
