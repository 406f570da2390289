package intercept

import (
	"encoding/json"
	"strings"

	"github.com/ppiankov/sceneguard/internal/model"
)

// RewriteResponse replaces the text of a non-streaming response with the
// guarded content. Text blocks past the cut are dropped and the marker
// lands at the end of the block the cut fell in. Returns the modified JSON
// bytes and whether any changes were made.
func RewriteResponse(body map[string]any, blocks []TextBlock, format LLMFormat, result model.GuardResult, marker string) ([]byte, bool) {
	if !result.WasTerminated || len(blocks) == 0 {
		return nil, false
	}

	var changed bool
	switch format {
	case FormatAnthropic:
		changed = rewriteAnthropic(body, blocks, result, marker)
	case FormatOpenAI:
		changed = rewriteOpenAI(body, result)
	}
	if !changed {
		return nil, false
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, false
	}
	return out, true
}

func rewriteAnthropic(body map[string]any, blocks []TextBlock, result model.GuardResult, marker string) bool {
	content, ok := body["content"].([]any)
	if !ok {
		return false
	}

	kept := strings.TrimSuffix(result.Content, marker)
	remaining := len(kept)
	drop := make(map[int]bool)
	placed := false

	for i, tb := range blocks {
		if placed {
			drop[tb.Index] = true
			continue
		}
		if remaining > len(tb.Text) && i < len(blocks)-1 {
			remaining -= len(tb.Text)
			continue
		}
		take := remaining
		if take > len(tb.Text) {
			take = len(tb.Text)
		}
		if block, ok := content[tb.Index].(map[string]any); ok {
			block["text"] = tb.Text[:take] + marker
		}
		placed = true
	}

	if len(drop) > 0 {
		out := make([]any, 0, len(content)-len(drop))
		for i, item := range content {
			if !drop[i] {
				out = append(out, item)
			}
		}
		body["content"] = out
	}
	body["stop_reason"] = "end_turn"
	return true
}

func rewriteOpenAI(body map[string]any, result model.GuardResult) bool {
	choices, ok := body["choices"].([]any)
	if !ok || len(choices) == 0 {
		return false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return false
	}
	msg["content"] = result.Content
	first["finish_reason"] = "stop"
	return true
}

// SetAnthropicDeltaText replaces the text of a text_delta event in place.
func SetAnthropicDeltaText(event map[string]any, text string) {
	if delta, ok := event["delta"].(map[string]any); ok {
		delta["text"] = text
	}
}

// SetOpenAIDeltaContent replaces choices[0].delta.content of a chunk in place.
func SetOpenAIDeltaContent(chunk map[string]any, text string) {
	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return
	}
	delta, ok := first["delta"].(map[string]any)
	if !ok {
		delta = make(map[string]any)
		first["delta"] = delta
	}
	delta["content"] = text
}

// SetOpenAIFinishReason sets choices[0].finish_reason of a chunk in place.
func SetOpenAIFinishReason(chunk map[string]any, reason string) {
	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return
	}
	if first, ok := choices[0].(map[string]any); ok {
		first["finish_reason"] = reason
	}
}

// AnthropicEvent renders one SSE event in Anthropic framing.
func AnthropicEvent(eventType string, data map[string]any) string {
	b, _ := json.Marshal(data)
	return "event: " + eventType + "\ndata: " + string(b) + "\n\n"
}

// AnthropicTextDeltaEvent renders a text_delta for block index.
func AnthropicTextDeltaEvent(index int, text string) string {
	return AnthropicEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": index,
		"delta": map[string]any{
			"type": "text_delta",
			"text": text,
		},
	})
}

// AnthropicStopEvents closes block index and the message after the guard
// stopped the scene.
func AnthropicStopEvents(index int) []string {
	return []string{
		AnthropicEvent("content_block_stop", map[string]any{
			"type":  "content_block_stop",
			"index": index,
		}),
		AnthropicEvent("message_delta", map[string]any{
			"type": "message_delta",
			"delta": map[string]any{
				"stop_reason":   "end_turn",
				"stop_sequence": nil,
			},
			"usage": map[string]any{"output_tokens": 0},
		}),
		AnthropicEvent("message_stop", map[string]any{"type": "message_stop"}),
	}
}

// OpenAIContentChunk renders a chunk carrying text as delta content.
func OpenAIContentChunk(id, text string) string {
	return openAIChunk(id, map[string]any{"content": text}, nil)
}

// OpenAIFinishChunk renders the finish_reason "stop" chunk followed by the
// [DONE] sentinel.
func OpenAIFinishChunk(id string) string {
	return openAIChunk(id, map[string]any{}, "stop") + "data: [DONE]\n\n"
}

func openAIChunk(id string, delta map[string]any, finish any) string {
	if id == "" {
		id = "chatcmpl-sceneguard"
	}
	chunk := map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": 0,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			},
		},
	}
	data, _ := json.Marshal(chunk)
	return "data: " + string(data) + "\n\n"
}
