package sceneguard

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/guard"
)

// ErrSceneEnded is returned by a guarded writer once the guard has stopped
// the scene.
var ErrSceneEnded = errors.New("sceneguard: scene ended")

// Guard is one scene's streaming session. Not safe for concurrent use.
type Guard struct {
	g *guard.Guard
}

// ProcessFragment runs one fragment through the guard. After the scene has
// ended it returns a zero result.
func (g *Guard) ProcessFragment(fragment string) FragmentResult {
	return g.g.ProcessFragment(fragment)
}

// Finish settles a pending end-condition match once the source is done.
func (g *Guard) Finish() FragmentResult { return g.g.Finish() }

// Result returns the session summary so far.
func (g *Guard) Result() Result { return g.g.Result() }

// Terminated reports whether the guard has stopped the scene.
func (g *Guard) Terminated() bool { return g.g.Terminated() }

// Reset clears the session so the guard can be reused for the same scene.
func (g *Guard) Reset() { g.g.Reset() }

// Writer returns an io.WriteCloser that guards everything written to it and
// forwards the accepted text to w. Once the scene ends, Write returns
// ErrSceneEnded. Close settles a pending match and flushes held bytes.
func (g *Guard) Writer(w io.Writer) io.WriteCloser {
	return &guardedWriter{g: g, w: w}
}

type guardedWriter struct {
	g     *Guard
	w     io.Writer
	carry []byte
}

func (gw *guardedWriter) Write(p []byte) (int, error) {
	if gw.g.Terminated() {
		return 0, ErrSceneEnded
	}
	data := append(gw.carry, p...)
	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	gw.carry = append([]byte(nil), data[cut:]...)
	if cut == 0 {
		return len(p), nil
	}

	res := gw.g.ProcessFragment(string(data[:cut]))
	if _, err := io.WriteString(gw.w, res.ProcessedFragment); err != nil {
		return 0, err
	}
	if !res.ShouldContinue {
		return len(p), ErrSceneEnded
	}
	return len(p), nil
}

func (gw *guardedWriter) Close() error {
	if gw.g.Terminated() {
		return nil
	}
	if len(gw.carry) > 0 {
		res := gw.g.ProcessFragment(string(gw.carry))
		gw.carry = nil
		if _, err := io.WriteString(gw.w, res.ProcessedFragment); err != nil {
			return err
		}
		if !res.ShouldContinue {
			return nil
		}
	}
	res := gw.g.Finish()
	_, err := io.WriteString(gw.w, res.ProcessedFragment)
	return err
}
