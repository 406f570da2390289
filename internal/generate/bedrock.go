package generate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures a Bedrock ConverseStream source.
type BedrockConfig struct {
	Region    string
	ModelID   string
	System    string
	User      string
	MaxTokens int32
	// Static credentials; empty uses the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
}

// converseStream is the part of the SDK event stream the source reads.
type converseStream interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

// BedrockSource streams a Converse response from Amazon Bedrock.
type BedrockSource struct {
	open   func(ctx context.Context) (converseStream, error)
	stream converseStream
	done   bool
}

// NewBedrockClient builds a runtime client from the default AWS config,
// overriding region and credentials when set.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*bedrockruntime.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// NewBedrockSource returns a source that starts the stream on the first Next.
func NewBedrockSource(client *bedrockruntime.Client, cfg BedrockConfig) *BedrockSource {
	return &BedrockSource{
		open: func(ctx context.Context) (converseStream, error) {
			out, err := client.ConverseStream(ctx, converseInput(cfg))
			if err != nil {
				return nil, err
			}
			return out.GetStream(), nil
		},
	}
}

func converseInput(cfg BedrockConfig) *bedrockruntime.ConverseStreamInput {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(cfg.ModelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: cfg.User}},
		}},
	}
	if cfg.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: cfg.System}}
	}
	if cfg.MaxTokens > 0 {
		in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(cfg.MaxTokens)}
	}
	return in
}

// Next returns the next text delta.
func (s *BedrockSource) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.stream == nil {
		stream, err := s.open(ctx)
		if err != nil {
			return "", bedrockError(err)
		}
		s.stream = stream
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-s.stream.Events():
			if !ok {
				s.done = true
				if err := s.stream.Err(); err != nil {
					return "", bedrockError(err)
				}
				return "", io.EOF
			}
			switch v := ev.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if text, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok && text.Value != "" {
					return text.Value, nil
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				s.done = true
				return "", io.EOF
			}
		}
	}
}

// Close ends the event stream.
func (s *BedrockSource) Close() error {
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

func bedrockError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return fmt.Errorf("%w: %s", ErrRateLimited, throttled.ErrorMessage())
	}
	return fmt.Errorf("bedrock: %w", err)
}
