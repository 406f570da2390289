package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/server"
)

var (
	servePort     int
	servePolicy   string
	serveProfile  string
	serveAuditLog string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 50051, "gRPC listen port")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveProfile, "profile", "", "Guard profile to apply (e.g., strict)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC guard server",
	Long: "Runs sceneguard as a central guard server over gRPC.\n" +
		"Generation workers open one Stream per scene and send fragments as they\n" +
		"arrive. Supports hot-reload of the policy file.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.Config{
		Port:         servePort,
		PolicyPath:   servePolicy,
		ProfileName:  serveProfile,
		AuditLogPath: serveAuditLog,
		Logger:       logger,
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if servePolicy != "" {
		go func() {
			if err := srv.Watch(ctx); err != nil {
				logger.Warn("hot-reload disabled", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down guard server...")
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "sceneguard server listening on :%d\n", servePort)
	if serveProfile != "" {
		fmt.Fprintf(os.Stderr, "Profile: %s\n", serveProfile)
	}
	if servePolicy != "" {
		fmt.Fprintf(os.Stderr, "Policy: %s (hot-reload enabled)\n", servePolicy)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
