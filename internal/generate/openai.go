package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIConfig configures a chat-completions source.
type OpenAIConfig struct {
	BaseURL     string // default https://api.openai.com
	APIKey      string
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
}

// OpenAISource streams a chat completion over SSE.
type OpenAISource struct {
	cfg     OpenAIConfig
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// NewOpenAISource returns a source that sends its request on the first Next.
func NewOpenAISource(cfg OpenAIConfig) *OpenAISource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &OpenAISource{cfg: cfg}
}

func (s *OpenAISource) open(ctx context.Context) error {
	messages := []map[string]string{}
	if s.cfg.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": s.cfg.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": s.cfg.User})

	payload := map[string]any{
		"model":    s.cfg.Model,
		"messages": messages,
		"stream":   true,
	}
	if s.cfg.MaxTokens > 0 {
		payload["max_tokens"] = s.cfg.MaxTokens
	}
	if s.cfg.Temperature > 0 {
		payload["temperature"] = s.cfg.Temperature
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	s.body = resp.Body
	s.scanner = bufio.NewScanner(resp.Body)
	s.scanner.Buffer(make([]byte, 64<<10), 1<<20)
	return nil
}

// Next returns the next non-empty content delta.
func (s *OpenAISource) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.scanner == nil {
		if err := s.open(ctx); err != nil {
			return "", err
		}
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decode chunk: %w", err)
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read stream: %w", err)
	}
	s.done = true
	return "", io.EOF
}

// Close drops the connection, which stops generation upstream.
func (s *OpenAISource) Close() error {
	s.done = true
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}
