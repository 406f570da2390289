package intercept

import (
	"strings"
)

// LLMFormat identifies which LLM API format a response uses.
type LLMFormat int

const (
	FormatUnknown   LLMFormat = 0
	FormatAnthropic LLMFormat = 1
	FormatOpenAI    LLMFormat = 2
)

// TextBlock is one piece of generated prose found in a response body.
type TextBlock struct {
	Index int    // position in the content array, or choice index
	Text  string // generated text
}

// DetectFormat examines a parsed JSON response body and determines
// whether it uses Anthropic or OpenAI format.
func DetectFormat(body map[string]any) LLMFormat {
	// Anthropic: has "content" array with objects having "type" field
	if content, ok := body["content"]; ok {
		if arr, ok := content.([]any); ok && len(arr) > 0 {
			if first, ok := arr[0].(map[string]any); ok {
				if _, hasType := first["type"]; hasType {
					return FormatAnthropic
				}
			}
		}
	}

	// OpenAI: has "choices" array with objects having "message" field
	if choices, ok := body["choices"]; ok {
		if arr, ok := choices.([]any); ok && len(arr) > 0 {
			if first, ok := arr[0].(map[string]any); ok {
				if _, hasMsg := first["message"]; hasMsg {
					return FormatOpenAI
				}
			}
		}
	}

	return FormatUnknown
}

// DetectStreamingFormat determines format from the HTTP request path/headers.
func DetectStreamingFormat(path string, headers map[string][]string) LLMFormat {
	if strings.Contains(path, "/v1/messages") {
		return FormatAnthropic
	}
	if strings.Contains(path, "/v1/chat/completions") {
		return FormatOpenAI
	}
	if _, ok := headers["Anthropic-Version"]; ok {
		return FormatAnthropic
	}
	return FormatUnknown
}

// ExtractText returns the text blocks of a parsed response body in order.
// Only the first OpenAI choice is guarded.
func ExtractText(body map[string]any) ([]TextBlock, LLMFormat) {
	format := DetectFormat(body)
	switch format {
	case FormatAnthropic:
		return extractAnthropic(body), format
	case FormatOpenAI:
		return extractOpenAI(body), format
	default:
		return nil, format
	}
}

// JoinText concatenates the text of blocks.
func JoinText(blocks []TextBlock) string {
	var b strings.Builder
	for _, tb := range blocks {
		b.WriteString(tb.Text)
	}
	return b.String()
}

func extractAnthropic(body map[string]any) []TextBlock {
	content, ok := body["content"].([]any)
	if !ok {
		return nil
	}
	var blocks []TextBlock
	for i, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if blockType, _ := block["type"].(string); blockType != "text" {
			continue
		}
		text, _ := block["text"].(string)
		blocks = append(blocks, TextBlock{Index: i, Text: text})
	}
	return blocks
}

func extractOpenAI(body map[string]any) []TextBlock {
	msg := firstChoiceField(body, "message")
	if msg == nil {
		return nil
	}
	text, ok := msg["content"].(string)
	if !ok {
		return nil
	}
	return []TextBlock{{Index: 0, Text: text}}
}

// AnthropicTextDelta returns the text of a content_block_delta event
// carrying a text_delta, and the block index.
func AnthropicTextDelta(event map[string]any) (string, int, bool) {
	if t, _ := event["type"].(string); t != "content_block_delta" {
		return "", 0, false
	}
	delta, ok := event["delta"].(map[string]any)
	if !ok {
		return "", 0, false
	}
	if dt, _ := delta["type"].(string); dt != "text_delta" {
		return "", 0, false
	}
	text, _ := delta["text"].(string)
	return text, intFromAny(event["index"]), true
}

// OpenAIContentDelta returns choices[0].delta.content of a chunk.
func OpenAIContentDelta(chunk map[string]any) (string, bool) {
	delta := firstChoiceField(chunk, "delta")
	if delta == nil {
		return "", false
	}
	text, ok := delta["content"].(string)
	return text, ok
}

// OpenAIFinishReason returns choices[0].finish_reason when set.
func OpenAIFinishReason(chunk map[string]any) (string, bool) {
	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := first["finish_reason"].(string)
	return reason, ok && reason != ""
}

func firstChoiceField(body map[string]any, field string) map[string]any {
	choices, ok := body["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	m, _ := first[field].(map[string]any)
	return m
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
