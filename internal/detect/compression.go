package detect

import "github.com/ppiankov/sceneguard/internal/model"

// compressionPatterns match prose that summarizes events instead of
// dramatizing them.
var compressionPatterns = []Pattern{
	mustPattern("summary_phrase",
		`(?:요약하자면|간단히\s?말해|한마디로\s?말하자면|결론적으로)`),

	// "그 후로 두 사람은", "그날 이후 그는"
	mustPattern("aftermath",
		`(?:그\s?후로|그\s?뒤로|그\s?이후로|그날\s?이후)\s?(?:그들은|그는|그녀는|두\s?사람은|모두)`),

	mustPattern("resolved",
		`(?:모든\s?것이|모든\s?일이|사건은|일은)\s?(?:무사히\s?)?`+
			`(?:끝났다|해결되었다|해결됐다|마무리되었다|마무리됐다|일단락되었다|정리되었다)`),

	mustPattern("repetition",
		`(?:몇\s?번이고|수없이|여러\s?차례|매일같이|날마다)[^.!?\n]{0,20}(?:반복했다|되풀이했다|계속되었다|이어졌다)`),

	mustPattern("ever_after",
		`(?:행복하게|오래오래)\s?살았`),

	mustPattern("montage",
		`(?:그동안|그\s?사이)\s?(?:많은|여러)\s?일이\s?(?:있었다|일어났다)`),

	mustPattern("summary_phrase_en",
		`(?i)\b(?:to\s+make\s+a\s+long\s+story\s+short|long\s+story\s+short|in\s+summary)\b`),

	mustPattern("ever_after_en",
		`(?i)\bhappily\s+ever\s+after\b`),

	mustPattern("montage_en",
		`(?i)\bover\s+the\s+(?:following|next|coming)\s+(?:days|weeks|months|years)\b`),

	mustPattern("resolved_en",
		`(?i)\beventually\b[^.!?\n]{0,40}\b(?:everything|it\s+all)\s+(?:worked\s+out|ended|was\s+resolved)\b`),
}

// Compression returns the summary-prose library with operator-defined extras appended.
func Compression(extra []Pattern) *Library {
	return NewLibrary(model.KindScopeExceeded, compressionPatterns, extra)
}
