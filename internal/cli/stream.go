package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/generate"
	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

var (
	streamFlags runFlags
	streamChunk int
	streamTrace bool
)

func init() {
	rootCmd.AddCommand(streamCmd)
	streamFlags.register(streamCmd)
	streamCmd.Flags().IntVar(&streamChunk, "chunk", 256, "Maximum bytes per fragment read from stdin")
	streamCmd.Flags().BoolVar(&streamTrace, "trace", false, "Print the per-fragment trace to stderr on exit")
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Guard text piped on stdin as it arrives",
	Long: "Reads stdin fragment by fragment, forwards the guarded text to stdout as\n" +
		"it is accepted, and stops reading once the scene ends.\n" +
		"Usage: llm-cli generate ... | sceneguard stream --scene ep01-s03.yaml",
	Args: cobra.NoArgs,
	RunE: runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	s, err := streamFlags.load()
	if err != nil {
		return err
	}
	g, err := guard.New(s.scene.Constraints(), streamFlags.options(s)...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionID := tracer.NewSessionID()
	trace := tracer.NewSessionTrace(sessionID, s.scene.Label())
	d := generate.Driver{
		Out:    cmd.OutOrStdout(),
		Trace:  trace,
		Logger: logger.With(zap.String("session", sessionID)),
	}
	result, runErr := d.Drive(ctx, generate.NewReaderSource(os.Stdin, streamChunk), g)
	fmt.Fprintln(cmd.OutOrStdout())

	streamFlags.record(context.Background(), s, sessionID, "stream", result)
	if streamTrace {
		printJSON(cmd.ErrOrStderr(), trace.ToJSON())
	}
	if err := writeReport(cmd.ErrOrStderr(), streamFlags.format, sessionID, result); err != nil {
		return err
	}
	return runErr
}
