package intercept

import (
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

func FuzzExtractText(f *testing.F) {
	f.Add([]byte(`{"content":[{"type":"text","text":"비가 내렸다."}]}`))
	f.Add([]byte(`{"choices":[{"message":{"content":"It rained."}}]}`))
	f.Add([]byte(`{"content":[{"type":"tool_use","id":"toolu_1","name":"x","input":{}}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`not json at all`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return
		}
		blocks, format := ExtractText(body)
		joined := JoinText(blocks)

		// Must not panic when the cut lands mid-text
		cut := len(joined) / 2
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		result := model.GuardResult{WasTerminated: true, Content: joined[:cut] + testMarker}
		RewriteResponse(body, blocks, format, result, testMarker)
	})
}
