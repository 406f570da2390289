package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sgmcp "github.com/ppiankov/sceneguard/internal/mcp"
)

var (
	mcpPolicy   string
	mcpProfile  string
	mcpAuditLog string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpPolicy, "policy", "", "Path to policy YAML")
	mcpCmd.Flags().StringVar(&mcpProfile, "profile", "", "Guard profile to apply (e.g., strict)")
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Path to audit log JSONL file")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for planning agents",
	Long: "Runs sceneguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: sceneguard_check, sceneguard_thresholds.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := sgmcp.Config{
		PolicyPath:   mcpPolicy,
		ProfileName:  mcpProfile,
		AuditLogPath: mcpAuditLog,
		Logger:       logger,
	}

	srv, err := sgmcp.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, "sceneguard MCP server running on stdio")
	if mcpProfile != "" {
		fmt.Fprintf(os.Stderr, "Profile: %s\n", mcpProfile)
	}
	fmt.Fprintln(os.Stderr)

	err = srv.Run(ctx)

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Trace summary:")
	printJSON(os.Stderr, srv.TraceSummary())

	return err
}
