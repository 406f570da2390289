// Package intercept is a reverse proxy in front of an LLM API that guards
// generated prose scene by scene. Text deltas pass through a fresh guard
// per request; once the guard stops the scene the proxy closes the
// response itself and drops the upstream connection.
package intercept

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/alert"
	"github.com/ppiankov/sceneguard/internal/audit"
	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/logging"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
	"github.com/ppiankov/sceneguard/internal/reload"
	"github.com/ppiankov/sceneguard/internal/scene"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

// Config holds interceptor proxy configuration.
type Config struct {
	Port         int
	Upstream     string // e.g. "https://api.anthropic.com"
	PolicyPath   string
	ProfileName  string
	ScenePath    string // scene YAML; empty guards with zero constraints
	AuditLogPath string
	Logger       *zap.Logger
}

// Server is a reverse HTTP proxy that guards LLM text output.
type Server struct {
	cfg      Config
	upstream *url.URL
	logger   *zap.Logger
	auditLog *audit.Log

	mu         sync.Mutex
	policyCfg  *policy.PolicyConfig
	policyHash string
	scene      *scene.Scene
	dispatcher *alert.Dispatcher
	lastTrace  *tracer.SessionTrace

	srv *http.Server
}

// NewServer creates an interceptor proxy with loaded policy and scene.
func NewServer(cfg Config) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		upstream: upstream,
		logger:   logging.OrNop(cfg.Logger).Named("intercept"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	if cfg.AuditLogPath != "" {
		s.auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s,
	}
	return s, nil
}

// Reload re-reads policy, profile and scene. On error the previous state
// stays in effect.
func (s *Server) Reload() error {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy config: %w", err)
	}
	if s.cfg.ProfileName != "" {
		prof, err := profile.Load(s.cfg.ProfileName)
		if err != nil {
			return fmt.Errorf("failed to load profile %q: %w", s.cfg.ProfileName, err)
		}
		policyCfg, err = profile.ApplyToPolicy(prof, policyCfg)
		if err != nil {
			return fmt.Errorf("failed to apply profile %q: %w", s.cfg.ProfileName, err)
		}
	}

	var sc *scene.Scene
	if s.cfg.ScenePath != "" {
		sc, err = scene.Load(s.cfg.ScenePath)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.policyCfg = policyCfg
	s.policyHash = policyHash
	s.scene = sc
	s.dispatcher = alert.NewDispatcher(policyCfg.Alerts)
	s.mu.Unlock()
	return nil
}

// Start begins listening and watching the policy and scene files.
// Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	watcher, err := reload.New([]string{s.cfg.PolicyPath, s.cfg.ScenePath}, s.Reload, s.logger)
	if err != nil {
		s.logger.Warn("hot reload disabled", zap.Error(err))
	} else {
		go watcher.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("intercept proxy listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("upstream", s.upstream.String()))

	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// TraceSummary exports the trace of the most recent guarded response.
func (s *Server) TraceSummary() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTrace == nil {
		return nil
	}
	return s.lastTrace.ToJSON()
}

// session bundles what one guarded response needs.
type session struct {
	id         string
	label      string
	policyHash string
	marker     string
	guard      *guard.Guard
	trace      *tracer.SessionTrace
	dispatcher *alert.Dispatcher
}

func (s *Server) newSession() (*session, error) {
	s.mu.Lock()
	cfg, hash, sc, d := s.policyCfg, s.policyHash, s.scene, s.dispatcher
	s.mu.Unlock()

	var constraints model.SceneConstraints
	opts := []guard.Option{guard.WithConfig(cfg)}
	label := ""
	if sc != nil {
		constraints = sc.Constraints()
		opts = append(opts, sc.Options()...)
		label = sc.Label()
	}
	g, err := guard.New(constraints, opts...)
	if err != nil {
		return nil, err
	}

	id := tracer.NewSessionID()
	return &session{
		id:         id,
		label:      label,
		policyHash: hash,
		marker:     cfg.EndMarker,
		guard:      g,
		trace:      tracer.NewSessionTrace(id, label),
		dispatcher: d,
	}, nil
}

func (sess *session) process(fragment string) model.FragmentResult {
	res := sess.guard.ProcessFragment(fragment)
	sess.trace.Observe(fragment, res)
	return res
}

func (sess *session) finish() model.FragmentResult {
	if sess.guard.Terminated() {
		return model.FragmentResult{}
	}
	res := sess.guard.Finish()
	if !res.ShouldContinue {
		sess.trace.Observe("", res)
	}
	return res
}

// complete records the outcome of a guarded response.
func (s *Server) complete(sess *session, result model.GuardResult) {
	if s.auditLog != nil {
		if err := s.auditLog.RecordResult(sess.id, sess.label, sess.policyHash, result); err != nil {
			s.logger.Error("audit write failed", zap.String("session", sess.id), zap.Error(err))
		}
	}
	sess.dispatcher.DispatchResult(sess.id, sess.label, sess.policyHash, result)

	s.mu.Lock()
	s.lastTrace = sess.trace
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("session", sess.id),
		zap.String("scene", sess.label),
		zap.Int("violations", len(result.Violations)),
	}
	if result.WasTerminated {
		s.logger.Info("scene stopped", append(fields, zap.String("reason", result.TerminationReason))...)
		return
	}
	s.logger.Debug("scene passed", fields...)
}

// ServeHTTP forwards requests to upstream and guards responses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Build outbound request to upstream
	outURL := *s.upstream
	outURL.Path = r.URL.Path
	outURL.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(ctx, r.Method, outURL.String(), r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create request: %v", err), http.StatusInternalServerError)
		return
	}

	// Copy all headers (preserves Authorization, anthropic-version, etc.)
	for k, vv := range r.Header {
		for _, v := range vv {
			outReq.Header.Add(k, v)
		}
	}
	outReq.Header.Set("Host", s.upstream.Host)
	outReq.ContentLength = r.ContentLength

	resp, err := http.DefaultTransport.RoundTrip(outReq)
	if err != nil {
		http.Error(w, fmt.Sprintf("upstream error: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		copyHeaders(w, resp)
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	// Route to streaming or non-streaming handler
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") {
		s.handleStreaming(w, r, resp)
		return
	}

	s.handleNonStreaming(w, resp)
}

// handleNonStreaming reads the full response, guards its text, rewrites.
func (s *Server) handleNonStreaming(w http.ResponseWriter, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read upstream response: %v", err), http.StatusBadGateway)
		return
	}

	passthrough := func() {
		copyHeaders(w, resp)
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
	}

	var bodyMap map[string]any
	if err := json.Unmarshal(body, &bodyMap); err != nil {
		passthrough()
		return
	}

	blocks, format := ExtractText(bodyMap)
	if len(blocks) == 0 {
		passthrough()
		return
	}

	sess, err := s.newSession()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build guard: %v", err), http.StatusInternalServerError)
		return
	}
	for _, chunk := range guard.Chunks(JoinText(blocks), sess.guard.WindowSize()/2) {
		if !sess.process(chunk).ShouldContinue {
			break
		}
	}
	sess.finish()
	result := sess.guard.Result()
	s.complete(sess, result)

	modified, changed := RewriteResponse(bodyMap, blocks, format, result, sess.marker)
	if !changed {
		passthrough()
		return
	}

	// Write modified response with corrected Content-Length
	copyHeaders(w, resp)
	w.Header().Set("Content-Length", strconv.Itoa(len(modified)))
	w.WriteHeader(resp.StatusCode)
	w.Write(modified)
}

// handleStreaming guards SSE text deltas as they arrive.
func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		// Fallback: pass the stream through unguarded
		copyHeaders(w, resp)
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	// Copy response headers
	copyHeaders(w, resp)
	w.Header().Del("Content-Length")
	w.WriteHeader(resp.StatusCode)

	format := DetectStreamingFormat(r.URL.Path, r.Header)
	if format == FormatUnknown {
		io.Copy(w, resp.Body)
		flusher.Flush()
		return
	}

	sess, err := s.newSession()
	if err != nil {
		s.logger.Error("failed to build guard", zap.Error(err))
		io.Copy(w, resp.Body)
		flusher.Flush()
		return
	}

	st := &sseStream{w: w, flusher: flusher, sess: sess}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

	stopped := false
	for scanner.Scan() && !stopped {
		if format == FormatAnthropic {
			stopped = st.anthropicLine(scanner.Text())
		} else {
			stopped = st.openAILine(scanner.Text())
		}
	}
	if !stopped {
		st.end(format)
	}
	s.complete(sess, sess.guard.Result())
}

// sseStream rewrites one SSE response line by line. Event lines are held
// until their data line arrives so replacement events can be injected
// ahead of them.
type sseStream struct {
	w         io.Writer
	flusher   http.Flusher
	sess      *session
	pending   string
	textIndex int
	chunkID   string
	finished  bool
}

func (st *sseStream) write(s string) {
	fmt.Fprint(st.w, s)
	st.flusher.Flush()
}

func (st *sseStream) flushPending() {
	if st.pending != "" {
		fmt.Fprintf(st.w, "%s\n", st.pending)
		st.pending = ""
	}
}

// end settles a session whose upstream body ran out without a closing
// event. If that stops the scene the client still gets the marker and the
// stop events.
func (st *sseStream) end(format LLMFormat) {
	if st.finished || st.sess.guard.Terminated() {
		st.flushPending()
		return
	}
	st.finished = true
	res := st.sess.finish()
	if res.ShouldContinue {
		st.flushPending()
		return
	}
	st.pending = ""
	if format == FormatAnthropic {
		st.write(AnthropicTextDeltaEvent(st.textIndex, res.ProcessedFragment))
		for _, ev := range AnthropicStopEvents(st.textIndex) {
			st.write(ev)
		}
		return
	}
	st.write(OpenAIContentChunk(st.chunkID, res.ProcessedFragment))
	st.write(OpenAIFinishChunk(st.chunkID))
}

// anthropicLine handles one line of an Anthropic stream and reports
// whether the guard stopped the scene.
func (st *sseStream) anthropicLine(line string) bool {
	if strings.HasPrefix(line, "event: ") {
		st.flushPending()
		st.pending = line
		return false
	}
	if !strings.HasPrefix(line, "data: ") {
		st.flushPending()
		st.write(line + "\n")
		return false
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
		st.flushPending()
		st.write(line + "\n")
		return false
	}

	if text, idx, ok := AnthropicTextDelta(event); ok {
		st.textIndex = idx
		res := st.sess.process(text)
		if res.ShouldContinue {
			st.flushPending()
			st.write(line + "\n")
			return false
		}
		// the stop replaces the rest of the stream
		st.pending = ""
		st.write(AnthropicTextDeltaEvent(idx, res.ProcessedFragment))
		for _, ev := range AnthropicStopEvents(idx) {
			st.write(ev)
		}
		return true
	}

	if t, _ := event["type"].(string); t == "content_block_stop" && intFromAny(event["index"]) == st.textIndex && !st.finished {
		st.finished = true
		if res := st.sess.finish(); !res.ShouldContinue {
			st.pending = ""
			st.write(AnthropicTextDeltaEvent(st.textIndex, res.ProcessedFragment))
			for _, ev := range AnthropicStopEvents(st.textIndex) {
				st.write(ev)
			}
			return true
		}
	}

	st.flushPending()
	st.write(line + "\n")
	return false
}

// openAILine handles one line of an OpenAI stream and reports whether the
// guard stopped the scene.
func (st *sseStream) openAILine(line string) bool {
	if !strings.HasPrefix(line, "data: ") {
		st.write(line + "\n")
		return false
	}
	data := strings.TrimPrefix(line, "data: ")

	if data == "[DONE]" {
		if !st.finished {
			st.finished = true
			if res := st.sess.finish(); !res.ShouldContinue {
				st.write(OpenAIContentChunk(st.chunkID, res.ProcessedFragment))
				st.write(OpenAIFinishChunk(st.chunkID))
				return true
			}
		}
		st.write(line + "\n")
		return false
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		st.write(line + "\n")
		return false
	}
	if id, ok := chunk["id"].(string); ok && st.chunkID == "" {
		st.chunkID = id
	}

	text, _ := OpenAIContentDelta(chunk)
	if text != "" {
		res := st.sess.process(text)
		if !res.ShouldContinue {
			SetOpenAIDeltaContent(chunk, res.ProcessedFragment)
			out, _ := json.Marshal(chunk)
			st.write("data: " + string(out) + "\n\n")
			st.write(OpenAIFinishChunk(st.chunkID))
			return true
		}
	}

	if _, ok := OpenAIFinishReason(chunk); ok && !st.finished {
		st.finished = true
		if res := st.sess.finish(); !res.ShouldContinue {
			// the marker rides on the finishing chunk
			SetOpenAIDeltaContent(chunk, text+res.ProcessedFragment)
			SetOpenAIFinishReason(chunk, "stop")
			out, _ := json.Marshal(chunk)
			st.write("data: " + string(out) + "\n\n")
			st.write("data: [DONE]\n\n")
			return true
		}
	}

	st.write(line + "\n")
	return false
}

func copyHeaders(w http.ResponseWriter, resp *http.Response) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
}
