// Package guard enforces per-scene constraints on incrementally generated
// prose. A Guard owns one session: it accumulates fragments, runs the
// detector pipeline over a trailing window after each one, and decides
// whether the consumer should keep pulling.
//
// A Guard is not safe for concurrent use. One session, one Guard.
package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/detect"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
)

// Guard is the per-scene streaming enforcer.
type Guard struct {
	constraints model.SceneConstraints
	thresholds  policy.Thresholds
	strict      bool
	marker      string
	markerRunes int
	cap         int

	endCond      *detect.EndCondition
	timeJumps    *detect.Library
	compression  *detect.Library
	participants *detect.Participants

	onViolation  func(model.Violation)
	onEndReached func(string)

	// session state
	content    []byte
	violations []model.Violation
	recorded   map[model.ViolationKind][]span
	sighted    map[string]bool
	terminated bool
	reason     string
	endReached bool
}

// span is a recorded detection as a half-open rune range.
type span struct{ start, end int }

// New builds a Guard for one scene. It fails when the config does not
// validate or its extra patterns do not compile.
func New(constraints model.SceneConstraints, opts ...Option) (*Guard, error) {
	gc := guardConfig{}
	for _, o := range opts {
		o(&gc)
	}
	cfg := gc.policy
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	timeExtra, err := detect.Compile(cfg.TimeJumpPatterns)
	if err != nil {
		return nil, fmt.Errorf("time_jump_patterns: %w", err)
	}
	compExtra, err := detect.Compile(cfg.CompressionPatterns)
	if err != nil {
		return nil, fmt.Errorf("compression_patterns: %w", err)
	}

	strict := cfg.Strict
	if gc.strict != nil {
		strict = *gc.strict
	}
	marker := cfg.EndMarker

	th := cfg.Thresholds
	g := &Guard{
		constraints: constraints,
		thresholds:  th,
		strict:      strict,
		marker:      marker,
		markerRunes: utf8.RuneCountInString(marker),
		cap:         th.LengthCap(constraints.TargetLength),
		endCond: detect.NewEndCondition(constraints.EndCondition, constraints.EndConditionKind, detect.EndConditionOptions{
			MinKeywords:      th.MinKeywords,
			KeywordOverlap:   th.KeywordOverlap,
			SentenceFallback: th.SentenceFallback,
		}),
		timeJumps:    detect.TimeJump(timeExtra),
		compression:  detect.Compression(compExtra),
		onViolation:  gc.onViolation,
		onEndReached: gc.onEndReached,
	}
	if gc.roster != nil {
		g.participants = detect.NewParticipants(gc.roster, constraints, th.MinIdentifierLength)
	}
	g.Reset()
	return g, nil
}

// Reset discards the session and returns the Guard to its fresh state.
func (g *Guard) Reset() {
	g.content = nil
	g.violations = nil
	g.recorded = make(map[model.ViolationKind][]span)
	g.sighted = make(map[string]bool)
	g.terminated = false
	g.reason = ""
	g.endReached = false
}

// Strict reports whether every violation stops the scene.
func (g *Guard) Strict() bool { return g.strict }

// LengthCap returns the governing length cap in characters.
func (g *Guard) LengthCap() int { return g.cap }

// WindowSize returns the trailing window size in characters.
func (g *Guard) WindowSize() int { return g.thresholds.WindowSize }

// Terminated reports whether the session has stopped.
func (g *Guard) Terminated() bool { return g.terminated }

// ProcessFragment appends one fragment and runs the detector pipeline.
// Once the session is terminated every call is a no-op returning
// ShouldContinue=false and an empty fragment.
func (g *Guard) ProcessFragment(fragment string) model.FragmentResult {
	if g.terminated {
		return model.FragmentResult{}
	}

	prev := len(g.content)
	g.content = append(g.content, fragment...)
	total := utf8.RuneCount(g.content)

	winByte, winRunes := detect.TailStart(g.content, g.thresholds.WindowSize)
	window := string(g.content[winByte:])
	base := total - winRunes

	// 1. end condition
	if m := g.endCond.MatchSettled(window); m.Detected {
		if res, stopped := g.reachEnd(prev, base, total, m); stopped {
			return res
		}
	}

	var first *model.Violation

	// 2. time jump, 3. compression
	for _, stage := range []struct {
		check  policy.Check
		lib    *detect.Library
		reason string
	}{
		{policy.CheckTimeJump, g.timeJumps, "time jump detected: %q"},
		{policy.CheckCompression, g.compression, "scene compressed into summary: %q"},
	} {
		for _, h := range stage.lib.Scan(window) {
			pos := base + h.Position
			if g.isRecorded(stage.check, pos, h.Length) {
				continue
			}
			reason := fmt.Sprintf(stage.reason, h.Matched)
			v := g.record(stage.check, pos, h.Length, h.Matched, reason)
			if res, stopped := g.apply(stage.check, prev, pos, total, reason, &v); stopped {
				return res
			}
			if first == nil {
				first = &v
			}
		}
	}

	// 4. length cap
	if total >= g.cap {
		keep := g.cap - g.markerRunes
		if keep < 0 {
			keep = 0
		}
		reason := fmt.Sprintf("length cap reached (%d characters)", g.cap)
		v := g.record(policy.CheckLengthCap, keep, 0, "", reason)
		if res, stopped := g.apply(policy.CheckLengthCap, prev, keep, total, reason, &v); stopped {
			return res
		}
	}

	// 5. unauthorized characters
	if g.participants != nil {
		var last *model.Violation
		for _, s := range g.participants.Scan(window) {
			if g.sighted[s.ID] {
				continue
			}
			g.sighted[s.ID] = true
			v := g.record(policy.CheckParticipants, base+s.Position, utf8.RuneCountInString(s.ID), s.ID,
				fmt.Sprintf("unauthorized character appeared: %s", s.ID))
			last = &v
			if first == nil {
				first = &v
			}
		}
		// escalation only fires on a fresh sighting
		if last != nil && len(g.sighted) >= g.thresholds.EscalationDistinct {
			reason := fmt.Sprintf("%d unauthorized characters appeared: %s",
				len(g.sighted), strings.Join(g.sightedIDs(), ", "))
			if res, stopped := g.apply(policy.CheckParticipants, prev, last.Position, total, reason, last); stopped {
				return res
			}
		}
	}

	return model.FragmentResult{ShouldContinue: true, ProcessedFragment: fragment, Violation: first}
}

// Finish tells the guard the source is exhausted. A keyword match that was
// waiting for its sentence to close is settled against the text as it
// stands. The returned fragment is empty unless this stops the session.
func (g *Guard) Finish() model.FragmentResult {
	if g.terminated {
		return model.FragmentResult{}
	}
	total := utf8.RuneCount(g.content)
	winByte, winRunes := detect.TailStart(g.content, g.thresholds.WindowSize)
	base := total - winRunes
	if m := g.endCond.Match(string(g.content[winByte:])); m.Detected {
		if res, stopped := g.reachEnd(len(g.content), base, total, m); stopped {
			return res
		}
	}
	return model.FragmentResult{ShouldContinue: true}
}

func (g *Guard) reachEnd(prev, base, total int, m model.DetectionResult) (model.FragmentResult, bool) {
	pos := base + m.Position
	if g.isRecorded(policy.CheckEndCondition, pos, m.Length) {
		return model.FragmentResult{}, false
	}
	v := g.record(policy.CheckEndCondition, pos, m.Length, m.Matched,
		fmt.Sprintf("end condition reached: %q", m.Matched))
	g.endReached = true
	res, stopped := g.apply(policy.CheckEndCondition, prev, pos+m.Length, total, "end condition reached", &v)
	if stopped && g.onEndReached != nil {
		g.onEndReached(string(g.content))
	}
	return res, stopped
}

// apply carries out the policy decision for a fired check. cut is the
// truncation point; StopWithoutTruncate keeps everything up to total.
func (g *Guard) apply(check policy.Check, prev, cut, total int, reason string, v *model.Violation) (model.FragmentResult, bool) {
	switch policy.Decide(check, g.strict) {
	case policy.TruncateAndStop:
		return g.stop(prev, cut, reason, v), true
	case policy.StopWithoutTruncate:
		return g.stop(prev, total, reason, v), true
	default:
		return model.FragmentResult{}, false
	}
}

// Result returns the session outcome so far.
func (g *Guard) Result() model.GuardResult {
	violations := make([]model.Violation, len(g.violations))
	copy(violations, g.violations)
	return model.GuardResult{
		Content:             string(g.content),
		WasTerminated:       g.terminated,
		TerminationReason:   g.reason,
		Violations:          violations,
		EndConditionReached: g.endReached,
	}
}

// isRecorded reports whether [pos, pos+length) overlaps evidence already
// recorded for the same kind. A phrase whose head has slid out of the
// window still overlaps its earlier, longer match.
func (g *Guard) isRecorded(check policy.Check, pos, length int) bool {
	end := pos + max(length, 1)
	for _, s := range g.recorded[policy.KindFor(check)] {
		if pos < s.end && s.start < end {
			return true
		}
	}
	return false
}

func (g *Guard) record(check policy.Check, pos, length int, matched, description string) model.Violation {
	v := model.Violation{
		Kind:        policy.KindFor(check),
		Severity:    policy.SeverityFor(check),
		Position:    pos,
		Description: description,
		Matched:     matched,
	}
	g.recorded[v.Kind] = append(g.recorded[v.Kind], span{pos, pos + max(length, 1)})
	g.violations = append(g.violations, v)
	if g.onViolation != nil {
		g.onViolation(v)
	}
	return v
}

// stop cuts the accumulator at rune offset cut, appends the end marker and
// terminates. The returned fragment is whatever part of the current call
// survived the cut, plus the marker.
func (g *Guard) stop(prev, cut int, reason string, v *model.Violation) model.FragmentResult {
	at := detect.SafeCut(g.content, detect.ByteOffset(g.content, cut))

	var out strings.Builder
	if at > prev {
		out.Write(g.content[prev:at])
	}
	out.WriteString(g.marker)

	g.content = append(g.content[:at:at], g.marker...)
	g.terminated = true
	g.reason = reason

	return model.FragmentResult{ShouldContinue: false, ProcessedFragment: out.String(), Violation: v}
}

func (g *Guard) sightedIDs() []string {
	var ids []string
	for _, id := range g.participants.Unauthorized() {
		if g.sighted[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
