package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/generate"
	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

var (
	genFlags       runFlags
	genProvider    string
	genModel       string
	genBaseURL     string
	genRegion      string
	genBrief       string
	genMaxTokens   int
	genTemperature float64
	genRetries     int
)

func init() {
	rootCmd.AddCommand(generateCmd)
	genFlags.register(generateCmd)
	generateCmd.Flags().StringVar(&genProvider, "provider", "openai", "Model provider (openai|bedrock)")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Model name or Bedrock model ID (required)")
	generateCmd.Flags().StringVar(&genBaseURL, "base-url", "", "OpenAI-compatible API base URL (default: https://api.openai.com)")
	generateCmd.Flags().StringVar(&genRegion, "region", "", "AWS region for Bedrock (default: from AWS config)")
	generateCmd.Flags().StringVar(&genBrief, "brief", "", "User prompt; defaults to a request built from the scene title")
	generateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 4096, "Maximum tokens to generate")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", 0.8, "Sampling temperature (openai)")
	generateCmd.Flags().IntVar(&genRetries, "retries", 2, "Retries when the provider rate-limits before any text arrives")
	generateCmd.MarkFlagRequired("model")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a scene with a model under the guard",
	Long: "Prompts a model with the scene's constraints, streams its output through\n" +
		"the guard to stdout, and cancels the request as soon as the scene ends.\n" +
		"OpenAI reads OPENAI_API_KEY; Bedrock uses the default AWS credential chain.",
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := genFlags.load()
	if err != nil {
		return err
	}
	g, err := guard.New(s.scene.Constraints(), genFlags.options(s)...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, user := generate.Prompt(s.scene, genBrief)
	newSource, err := sourceFactory(ctx, genProvider, system, user)
	if err != nil {
		return err
	}

	sessionID := tracer.NewSessionID()
	log := logger.With(zap.String("session", sessionID), zap.String("provider", genProvider))
	d := generate.Driver{
		Out:    cmd.OutOrStdout(),
		Trace:  tracer.NewSessionTrace(sessionID, s.scene.Label()),
		Logger: log,
	}

	result, runErr := d.Drive(ctx, newSource(), g)
	for attempt := 1; attempt <= genRetries && errors.Is(runErr, generate.ErrRateLimited) && result.Content == ""; attempt++ {
		wait := time.Duration(attempt) * 2 * time.Second
		log.Warn("rate limited, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		g.Reset()
		result, runErr = d.Drive(ctx, newSource(), g)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	genFlags.record(context.Background(), s, sessionID, genProvider, result)
	if err := writeReport(cmd.ErrOrStderr(), genFlags.format, sessionID, result); err != nil {
		return err
	}
	return runErr
}

// sourceFactory returns a constructor for fresh sources of the provider, so
// a retry starts a new request.
func sourceFactory(ctx context.Context, provider, system, user string) (func() generate.Source, error) {
	switch provider {
	case "openai":
		cfg := generate.OpenAIConfig{
			BaseURL:     genBaseURL,
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       genModel,
			System:      system,
			User:        user,
			MaxTokens:   genMaxTokens,
			Temperature: genTemperature,
		}
		return func() generate.Source { return generate.NewOpenAISource(cfg) }, nil
	case "bedrock":
		cfg := generate.BedrockConfig{
			Region:    genRegion,
			ModelID:   genModel,
			System:    system,
			User:      user,
			MaxTokens: int32(genMaxTokens),
		}
		client, err := generate.NewBedrockClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return func() generate.Source { return generate.NewBedrockSource(client, cfg) }, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: use openai or bedrock", provider)
	}
}
