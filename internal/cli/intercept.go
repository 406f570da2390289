package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/intercept"
)

var (
	interceptPort     int
	interceptUpstream string
	interceptScene    string
	interceptPolicy   string
	interceptProfile  string
	interceptAuditLog string
)

func init() {
	rootCmd.AddCommand(interceptCmd)
	interceptCmd.Flags().IntVar(&interceptPort, "port", 9999, "Port to listen on")
	interceptCmd.Flags().StringVar(&interceptUpstream, "upstream", "https://api.anthropic.com", "Upstream LLM API URL")
	interceptCmd.Flags().StringVarP(&interceptScene, "scene", "s", "", "Path to scene YAML (hot-reloaded)")
	interceptCmd.Flags().StringVar(&interceptPolicy, "policy", "", "Path to policy YAML (default: ~/.sceneguard/policy.yaml)")
	interceptCmd.Flags().StringVar(&interceptProfile, "profile", "", "Guard profile to apply (e.g., strict)")
	interceptCmd.Flags().StringVar(&interceptAuditLog, "audit-log", "", "Path to audit log JSONL file")
}

var interceptCmd = &cobra.Command{
	Use:   "intercept",
	Short: "Start reverse proxy guarding LLM text responses",
	Long: "Reverse proxy between a writing tool and an LLM API. Every text response,\n" +
		"streamed or not, runs through a fresh guard for the current scene; once the\n" +
		"scene ends the proxy closes the response with a proper stop event.\n" +
		"Usage: ANTHROPIC_BASE_URL=http://localhost:9999 writer-tool",
	RunE: runIntercept,
}

func runIntercept(cmd *cobra.Command, args []string) error {
	cfg := intercept.Config{
		Port:         interceptPort,
		Upstream:     interceptUpstream,
		PolicyPath:   interceptPolicy,
		ProfileName:  interceptProfile,
		ScenePath:    interceptScene,
		AuditLogPath: interceptAuditLog,
		Logger:       logger,
	}

	srv, err := intercept.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create intercept server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "sceneguard interceptor listening on :%d\n", interceptPort)
	fmt.Fprintf(os.Stderr, "Upstream: %s\n", interceptUpstream)
	if interceptScene != "" {
		fmt.Fprintf(os.Stderr, "Scene: %s (hot-reload enabled)\n", interceptScene)
	}
	fmt.Fprintf(os.Stderr, "Set ANTHROPIC_BASE_URL=http://localhost:%d to route model traffic\n", interceptPort)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")
	fmt.Fprintln(os.Stderr)

	err = srv.Start(ctx)

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Last session trace:")
	printJSON(os.Stderr, srv.TraceSummary())

	return err
}
