package intercept

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/sceneguard/internal/audit"
)

// --- Test helpers ---

const doorScene = `id: s-12
title: Rain
target_length: 2000
end_condition: "She closed the door."
end_condition_type: action
characters: [Mina]
`

const windowScene = `id: s-13
target_length: 2000
end_condition: "그녀는 조용히 창문을 열고 웃었다"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

type testProxy struct {
	srv       *Server
	url       string
	auditPath string
	scenePath string
}

func newTestProxy(t *testing.T, upstreamURL, sceneYAML string) *testProxy {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Upstream:     upstreamURL,
		PolicyPath:   writeFile(t, dir, "policy.yaml", "strict: false\n"),
		AuditLogPath: filepath.Join(dir, "audit.jsonl"),
	}
	if sceneYAML != "" {
		cfg.ScenePath = writeFile(t, dir, "scene.yaml", sceneYAML)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("failed to create interceptor: %v", err)
	}
	front := httptest.NewServer(srv)
	t.Cleanup(func() {
		front.Close()
		srv.Close()
	})
	return &testProxy{srv: srv, url: front.URL, auditPath: cfg.AuditLogPath, scenePath: cfg.ScenePath}
}

func (p *testProxy) post(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(p.url+path, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func jsonUpstream(body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

func sseUpstream(events []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprint(w, ev)
			flusher.Flush()
		}
	}))
}

func anthropicResponse(texts ...string) []byte {
	var content []any
	for _, t := range texts {
		content = append(content, map[string]any{"type": "text", "text": t})
	}
	out, _ := json.Marshal(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     content,
		"stop_reason": "max_tokens",
	})
	return out
}

func openaiResponse(text string) []byte {
	out, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "length",
			},
		},
	})
	return out
}

func anthropicTextDelta(text string) string {
	data, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]any{"type": "text_delta", "text": text},
	})
	return "event: content_block_delta\ndata: " + string(data) + "\n\n"
}

var (
	anthropicHead = []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\"}}\n\n",
		"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n",
	}
	anthropicTail = []string{
		"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n",
		"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"}}\n\n",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
	}
)

func anthropicStream(deltas ...string) []string {
	events := append([]string{}, anthropicHead...)
	for _, d := range deltas {
		events = append(events, anthropicTextDelta(d))
	}
	return append(events, anthropicTail...)
}

func openaiSSE(id string, content *string, finishReason *string) string {
	delta := map[string]any{}
	if content != nil {
		delta["content"] = *content
	}
	choice := map[string]any{
		"index":         0,
		"delta":         delta,
		"finish_reason": nil,
	}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	}
	data, _ := json.Marshal(map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"choices": []any{choice},
	})
	return "data: " + string(data) + "\n\n"
}

func strPtr(s string) *string { return &s }

// --- Non-streaming ---

func TestNonStreamingEndConditionTruncates(t *testing.T) {
	upstream := jsonUpstream(anthropicResponse("Rain fell. She closed the door.", " The car waited outside."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	_, body := p.post(t, "/v1/messages")

	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, body)
	}
	content := got["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("expected the block past the cut dropped, got %d blocks", len(content))
	}
	if text := content[0].(map[string]any)["text"]; text != "Rain fell. She closed the door."+testMarker {
		t.Errorf("unexpected text %q", text)
	}
	if got["stop_reason"] != "end_turn" {
		t.Errorf("expected end_turn, got %v", got["stop_reason"])
	}
}

func TestNonStreamingCleanPassthrough(t *testing.T) {
	original := anthropicResponse("Rain fell on the roof.")
	upstream := jsonUpstream(original)
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	_, body := p.post(t, "/v1/messages")
	if body != string(original) {
		t.Errorf("clean response should pass through unchanged, got %s", body)
	}
	if res := audit.Verify(p.auditPath); !res.Valid || res.Lines != 1 {
		t.Errorf("expected one complete entry in a valid chain, got %+v", res)
	}
}

func TestNonStreamingOpenAIStrictTimeJump(t *testing.T) {
	upstream := jsonUpstream(openaiResponse("She waited. The next day she left."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene+"strict: true\n")

	_, body := p.post(t, "/v1/chat/completions")

	var got map[string]any
	json.Unmarshal([]byte(body), &got)
	choice := got["choices"].([]any)[0].(map[string]any)
	if text := choice["message"].(map[string]any)["content"]; text != "She waited. "+testMarker {
		t.Errorf("expected cut before the time jump, got %q", text)
	}
	if choice["finish_reason"] != "stop" {
		t.Errorf("expected finish_reason stop, got %v", choice["finish_reason"])
	}
}

func TestNonJSONPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain body"))
	}))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	if _, body := p.post(t, "/v1/messages"); body != "plain body" {
		t.Errorf("expected passthrough, got %q", body)
	}
}

func TestUpstreamErrorPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	resp, body := p.post(t, "/v1/messages")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "rate limited") {
		t.Errorf("expected upstream body, got %q", body)
	}
}

// --- Streaming ---

func TestStreamingAnthropicStopsAtEndCondition(t *testing.T) {
	upstream := sseUpstream(anthropicStream("Rain fell. ", "She closed the door. The", " car waited."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	_, output := p.post(t, "/v1/messages")

	if !strings.Contains(output, `"text":"Rain fell. "`) {
		t.Errorf("expected first delta forwarded, got:\n%s", output)
	}
	if !strings.Contains(output, `She closed the door.\n\n[SCENE END]`) {
		t.Errorf("expected cut delta with marker, got:\n%s", output)
	}
	if strings.Contains(output, "car waited") {
		t.Errorf("text after the stop must not be forwarded, got:\n%s", output)
	}
	if n := strings.Count(output, "event: message_stop"); n != 1 {
		t.Errorf("expected exactly one message_stop, got %d", n)
	}
	if res := audit.Verify(p.auditPath); !res.Valid || res.Lines != 2 {
		t.Errorf("expected violation and stop entries, got %+v", res)
	}
}

func TestStreamingAnthropicCleanPassthrough(t *testing.T) {
	events := anthropicStream("Rain fell. ", "Mina waited by the window.")
	upstream := sseUpstream(events)
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	_, output := p.post(t, "/v1/messages")
	if want := strings.Join(events, ""); output != want {
		t.Errorf("clean stream should pass through byte for byte\nwant:\n%s\ngot:\n%s", want, output)
	}
}

func TestStreamingAnthropicFinishSettlesAtBlockStop(t *testing.T) {
	upstream := sseUpstream(anthropicStream("그녀는 창문을 바라보다 ", "조용히 빗장을 열고"))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, windowScene)

	_, output := p.post(t, "/v1/messages")

	markerAt := strings.Index(output, "[SCENE END]")
	stopAt := strings.Index(output, "event: content_block_stop")
	if markerAt < 0 || stopAt < 0 || markerAt > stopAt {
		t.Errorf("expected marker delta before the block stop, got:\n%s", output)
	}
	if n := strings.Count(output, "event: message_stop"); n != 1 {
		t.Errorf("expected exactly one message_stop, got %d", n)
	}
}

func TestOpenAIStreamingLengthCap(t *testing.T) {
	piece := strings.Repeat("가", 30)
	events := []string{
		openaiSSE("chatcmpl-1", strPtr(piece), nil),
		openaiSSE("chatcmpl-1", strPtr(piece), nil),
		openaiSSE("chatcmpl-1", strPtr(piece), nil),
		openaiSSE("chatcmpl-1", strPtr("never forwarded"), nil),
		openaiSSE("chatcmpl-1", nil, strPtr("stop")),
		"data: [DONE]\n\n",
	}
	upstream := sseUpstream(events)
	defer upstream.Close()
	// target 100 caps the scene at 80 characters
	p := newTestProxy(t, upstream.URL, "id: s-1\ntarget_length: 100\n")

	_, output := p.post(t, "/v1/chat/completions")

	if !strings.Contains(output, strings.Repeat("가", 7)+`\n\n[SCENE END]`) {
		t.Errorf("expected third chunk cut to 7 characters plus marker, got:\n%s", output)
	}
	if strings.Contains(output, "never forwarded") {
		t.Errorf("chunk after the stop must not be forwarded, got:\n%s", output)
	}
	if n := strings.Count(output, "data: [DONE]"); n != 1 {
		t.Errorf("expected one [DONE], got %d", n)
	}
	if !strings.Contains(output, `"finish_reason":"stop"`) {
		t.Errorf("expected finish chunk, got:\n%s", output)
	}
}

func TestOpenAIStreamingFinishRidesOnFinishChunk(t *testing.T) {
	events := []string{
		openaiSSE("chatcmpl-2", strPtr("그녀는 창문을 바라보다 "), nil),
		openaiSSE("chatcmpl-2", strPtr("조용히 빗장을 열고"), nil),
		openaiSSE("chatcmpl-2", nil, strPtr("length")),
		"data: [DONE]\n\n",
	}
	upstream := sseUpstream(events)
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, windowScene)

	_, output := p.post(t, "/v1/chat/completions")

	if !strings.Contains(output, `"content":"\n\n[SCENE END]"`) {
		t.Errorf("expected marker on the finishing chunk, got:\n%s", output)
	}
	if strings.Contains(output, `"finish_reason":"length"`) {
		t.Errorf("expected finish_reason rewritten to stop, got:\n%s", output)
	}
	if n := strings.Count(output, "data: [DONE]"); n != 1 {
		t.Errorf("expected one [DONE], got %d", n)
	}
}

func TestStreamingSettlesWhenUpstreamEndsEarly(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		events := append([]string{}, anthropicHead...)
		events = append(events, anthropicTextDelta("그녀는 창문을 바라보다 "), anthropicTextDelta("조용히 빗장을 열고"))
		upstream := sseUpstream(events)
		defer upstream.Close()
		p := newTestProxy(t, upstream.URL, windowScene)

		_, output := p.post(t, "/v1/messages")

		if !strings.Contains(output, `\n\n[SCENE END]`) {
			t.Errorf("expected a marker delta, got:\n%s", output)
		}
		if n := strings.Count(output, "event: message_stop"); n != 1 {
			t.Errorf("expected exactly one message_stop, got %d", n)
		}
		if res := audit.Verify(p.auditPath); !res.Valid || res.Closed != 1 {
			t.Errorf("expected one closed session in the audit log, got %+v", res)
		}
	})

	t.Run("openai", func(t *testing.T) {
		events := []string{
			openaiSSE("chatcmpl-3", strPtr("그녀는 창문을 바라보다 "), nil),
			openaiSSE("chatcmpl-3", strPtr("조용히 빗장을 열고"), nil),
		}
		upstream := sseUpstream(events)
		defer upstream.Close()
		p := newTestProxy(t, upstream.URL, windowScene)

		_, output := p.post(t, "/v1/chat/completions")

		if !strings.Contains(output, `"content":"\n\n[SCENE END]"`) {
			t.Errorf("expected a marker chunk, got:\n%s", output)
		}
		if n := strings.Count(output, "data: [DONE]"); n != 1 {
			t.Errorf("expected one [DONE], got %d", n)
		}
	})
}

func TestStreamingUnknownFormatPassthrough(t *testing.T) {
	events := []string{"data: She closed the door.\n\n", "data: more\n\n"}
	upstream := sseUpstream(events)
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	if _, output := p.post(t, "/custom/stream"); output != strings.Join(events, "") {
		t.Errorf("unknown format should pass through, got %q", output)
	}
}

// --- Proxy plumbing ---

func TestRequestHeadersForwarded(t *testing.T) {
	var gotKey, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write(anthropicResponse("ok"))
	}))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	req, _ := http.NewRequest(http.MethodPost, p.url+"/v1/messages?beta=true", strings.NewReader("{}"))
	req.Header.Set("X-Api-Key", "sk-test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotKey != "sk-test" {
		t.Errorf("expected api key forwarded, got %q", gotKey)
	}
	if gotPath != "/v1/messages?beta=true" {
		t.Errorf("expected path and query forwarded, got %q", gotPath)
	}
}

func TestTraceSummaryAfterStream(t *testing.T) {
	upstream := sseUpstream(anthropicStream("Rain fell. ", "She closed the door."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	if p.srv.TraceSummary() != nil {
		t.Fatal("expected no trace before any request")
	}
	p.post(t, "/v1/messages")

	summary := p.srv.TraceSummary()
	if summary == nil {
		t.Fatal("expected a trace after a guarded response")
	}
	if summary["scene"] != "s-12" {
		t.Errorf("expected scene label s-12, got %v", summary["scene"])
	}
	if id, _ := summary["session_id"].(string); !strings.HasPrefix(id, "g-") {
		t.Errorf("expected session id, got %v", summary["session_id"])
	}
}

func TestReloadPicksUpSceneChange(t *testing.T) {
	upstream := jsonUpstream(anthropicResponse("Rain fell. Mina smiled. She closed the door."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	if err := os.WriteFile(p.scenePath, []byte("id: s-12\nend_condition: \"Mina smiled.\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := p.srv.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	_, body := p.post(t, "/v1/messages")
	if !strings.Contains(body, `Mina smiled.\n\n[SCENE END]`) {
		t.Errorf("expected new end condition applied, got %s", body)
	}
}

func TestReloadKeepsStateOnInvalidScene(t *testing.T) {
	upstream := jsonUpstream(anthropicResponse("Rain fell. She closed the door. More."))
	defer upstream.Close()
	p := newTestProxy(t, upstream.URL, doorScene)

	os.WriteFile(p.scenePath, []byte("target_length: -5\n"), 0600)
	if err := p.srv.Reload(); err == nil {
		t.Fatal("expected reload error for invalid scene")
	}

	_, body := p.post(t, "/v1/messages")
	if !strings.Contains(body, `She closed the door.\n\n[SCENE END]`) {
		t.Errorf("expected previous scene still applied, got %s", body)
	}
}

func TestNewServerRejectsMissingScene(t *testing.T) {
	_, err := NewServer(Config{Upstream: "http://127.0.0.1:1", ScenePath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing scene file")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	srv, err := NewServer(Config{
		Upstream:   "http://127.0.0.1:1",
		PolicyPath: writeFile(t, dir, "policy.yaml", "strict: false\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
