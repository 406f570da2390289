package guard

import (
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

// CheckComplete runs the streaming pipeline once over finished text and
// returns the result. The text is fed in chunks of half the window so
// every part of it passes through the trailing window at least once.
func CheckComplete(text string, constraints model.SceneConstraints, opts ...Option) (model.GuardResult, error) {
	g, err := New(constraints, opts...)
	if err != nil {
		return model.GuardResult{}, err
	}
	stopped := false
	for _, chunk := range Chunks(text, g.thresholds.WindowSize/2) {
		if !g.ProcessFragment(chunk).ShouldContinue {
			stopped = true
			break
		}
	}
	if !stopped {
		g.Finish()
	}
	return g.Result(), nil
}

// Chunks splits text into pieces of at most n runes.
func Chunks(text string, n int) []string {
	if text == "" {
		return nil
	}
	if n <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		i, count := 0, 0
		for i < len(text) && count < n {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			count++
		}
		out = append(out, text[:i])
		text = text[i:]
	}
	return out
}
