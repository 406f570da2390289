package detect

import "github.com/ppiankov/sceneguard/internal/model"

// timeJumpPatterns match surface phrases that skip narrative time.
// Scenes are expected to run in continuous time; any of these means the
// generator jumped forward instead of dramatizing.
var timeJumpPatterns = []Pattern{
	// "며칠이 지나", "3일 후", "한 달 뒤", "보름 만에"
	mustPattern("elapsed_span",
		`(?:며칠|몇\s?날|몇\s?주|몇\s?달|몇\s?개월|몇\s?년|수\s?일|수\s?주|수\s?개월|수\s?년|수십\s?년|`+
			`[0-9]+\s?(?:일|주일|주|달|개월|년|시간)|(?:한|두|세|네)\s?(?:달|해|시간)|`+
			`일주일|보름|이틀|사흘|나흘|닷새|열흘)`+
			`\s?(?:이|가)?\s?(?:지나|지났|흘러|흘렀|흐른|후|뒤|만에)`),

	// "다음 날", "이튿날", "이듬해"
	mustPattern("next_period",
		`(?:그\s?다음\s?날|다음\s?날|이튿날|다음\s?주|다음\s?달|이듬해|다음\s?해)`),

	// "세월이 흘러", "시간이 지나"
	mustPattern("time_passed",
		`(?:시간|세월|계절|몇\s?해)(?:이|가|은|는)\s?(?:흘러|흘렀|흐르고|지나|지났)`),

	// "그로부터 사흘 뒤"
	mustPattern("since_then",
		`그로부터\s?\S{1,10}\s?(?:후|뒤|이\s?지나|가\s?지나)`),

	mustPattern("elapsed_span_en",
		`(?i)\b(?:several|a\s+few|many|two|three|four|five|\d+)\s+(?:hours|days|weeks|months|years)\s+(?:later|passed|went\s+by)\b`),

	mustPattern("next_period_en",
		`(?i)\bthe\s+(?:next|following)\s+(?:day|morning|evening|week|month|year)\b`),

	mustPattern("single_span_en",
		`(?i)\b(?:a|one)\s+(?:day|week|month|year)\s+later\b`),

	mustPattern("time_passed_en",
		`(?i)\b(?:time|years|months|weeks)\s+(?:passed|went\s+by|flew\s+by)\b`),
}

// TimeJump returns the time-jump library with operator-defined extras appended.
func TimeJump(extra []Pattern) *Library {
	return NewLibrary(model.KindTimeJump, timeJumpPatterns, extra)
}
