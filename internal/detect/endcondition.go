package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

// EndCondition decides whether the author-specified closing beat has been
// written. Three strategies run in order: verbatim, keyword overlap, and
// (dialogue only) quoted sub-phrase.
type EndCondition struct {
	text        string
	kind        model.EndConditionKind
	keywords    []string
	quotes      []string
	minKeywords int
	overlap     float64
	fallback    int
}

// EndConditionOptions carries the thresholds for the keyword heuristic.
type EndConditionOptions struct {
	MinKeywords      int
	KeywordOverlap   float64
	SentenceFallback int
}

// quotedRe extracts quoted sub-phrases from a dialogue end condition.
var quotedRe = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|'([^']+)'|‘([^’]+)’|「([^」]+)」|『([^』]+)』`)

// NewEndCondition prepares the matcher for one scene.
func NewEndCondition(text string, kind model.EndConditionKind, opts EndConditionOptions) *EndCondition {
	text = strings.TrimSpace(text)
	ec := &EndCondition{
		text:        text,
		kind:        kind,
		keywords:    Keywords(text),
		minKeywords: opts.MinKeywords,
		overlap:     opts.KeywordOverlap,
		fallback:    opts.SentenceFallback,
	}
	if kind == model.EndDialogue {
		ec.quotes = QuotedPhrases(text)
	}
	return ec
}

// Keywords returns the distinct words of s with punctuation stripped,
// keeping only words of at least two runes.
func Keywords(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)

	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// QuotedPhrases returns the non-trivial quoted sub-phrases of s.
func QuotedPhrases(s string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(s, -1) {
		for _, g := range m[1:] {
			g = strings.TrimSpace(g)
			if utf8.RuneCountInString(g) >= 2 {
				out = append(out, g)
			}
		}
	}
	return out
}

// Keywords returns the prepared keyword list.
func (ec *EndCondition) Keywords() []string {
	return ec.keywords
}

// Match checks complete text for the end condition. The returned position
// and length are rune offsets into text; the match always ends on a rune
// boundary.
func (ec *EndCondition) Match(text string) model.DetectionResult {
	return ec.match(text, true)
}

// MatchSettled is Match for text that may still grow. A keyword match whose
// sentence has neither ended nor run past the fallback length is not
// reported yet, so a stream split before the terminator is not cut short.
func (ec *EndCondition) MatchSettled(text string) model.DetectionResult {
	return ec.match(text, false)
}

func (ec *EndCondition) match(text string, final bool) model.DetectionResult {
	if ec.text == "" {
		return model.NotDetected
	}

	if idx := strings.Index(text, ec.text); idx >= 0 {
		return model.DetectionResult{
			Detected: true,
			Position: RuneOffset(text, idx),
			Length:   utf8.RuneCountInString(ec.text),
			Matched:  ec.text,
		}
	}

	if r := ec.matchKeywords(text, final); r.Detected {
		return r
	}

	for _, q := range ec.quotes {
		idx := strings.Index(text, q)
		if idx < 0 {
			continue
		}
		end := idx + len(q)
		end += closingRun(text[end:])
		return model.DetectionResult{
			Detected: true,
			Position: RuneOffset(text, idx),
			Length:   utf8.RuneCountInString(text[idx:end]),
			Matched:  text[idx:end],
		}
	}

	return model.NotDetected
}

// matchKeywords fires when enough keywords are present. The match starts at
// the right-most matched keyword and extends to the end of its sentence.
func (ec *EndCondition) matchKeywords(text string, final bool) model.DetectionResult {
	total := len(ec.keywords)
	if total < ec.minKeywords || total == 0 {
		return model.NotDetected
	}

	matched := 0
	lastStart, lastEnd := -1, -1
	for _, kw := range ec.keywords {
		idx := strings.LastIndex(text, kw)
		if idx < 0 {
			continue
		}
		matched++
		if idx > lastStart {
			lastStart, lastEnd = idx, idx+len(kw)
		}
	}

	if float64(matched)/float64(total) < ec.overlap {
		return model.NotDetected
	}

	n, complete := sentenceEnd(text[lastEnd:], ec.fallback)
	if !complete && !final {
		return model.NotDetected
	}
	end := lastEnd + n
	return model.DetectionResult{
		Detected: true,
		Position: RuneOffset(text, lastStart),
		Length:   utf8.RuneCountInString(text[lastStart:end]),
		Matched:  text[lastStart:end],
	}
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '」', '』', ')', '）':
		return true
	}
	return false
}

// sentenceEnd returns the byte length from the start of s through the first
// sentence terminator, including any trailing terminators and closing
// quotes. Without a terminator it returns the length of the first fallback
// runes (or all of s if shorter). complete is false when s ran out first.
func sentenceEnd(s string, fallback int) (n int, complete bool) {
	for i, r := range s {
		if isTerminator(r) {
			end := i + utf8.RuneLen(r)
			for end < len(s) {
				next, size := utf8.DecodeRuneInString(s[end:])
				if !isTerminator(next) && !isClosing(next) {
					break
				}
				end += size
			}
			return end, true
		}
	}

	count := 0
	for i := range s {
		if count == fallback {
			return i, true
		}
		count++
	}
	return len(s), count == fallback
}

// closingRun returns the byte length of the closing quote marks at the
// start of s.
func closingRun(s string) int {
	end := 0
	for end < len(s) {
		r, size := utf8.DecodeRuneInString(s[end:])
		if !isClosing(r) {
			break
		}
		end += size
	}
	return end
}
