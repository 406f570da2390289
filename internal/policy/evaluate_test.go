package policy

import (
	"testing"

	"github.com/ppiankov/sceneguard/internal/model"
)

func TestDecideTable(t *testing.T) {
	tests := []struct {
		check  Check
		strict bool
		want   Action
	}{
		{CheckEndCondition, false, TruncateAndStop},
		{CheckEndCondition, true, TruncateAndStop},
		{CheckLengthCap, false, TruncateAndStop},
		{CheckLengthCap, true, TruncateAndStop},
		{CheckTimeJump, false, Record},
		{CheckTimeJump, true, TruncateAndStop},
		{CheckCompression, false, Record},
		{CheckCompression, true, TruncateAndStop},
		{CheckParticipants, false, Record},
		{CheckParticipants, true, StopWithoutTruncate},
		{Check("unknown"), true, Record},
	}
	for _, tt := range tests {
		if got := Decide(tt.check, tt.strict); got != tt.want {
			t.Errorf("Decide(%s, strict=%v) = %s, want %s", tt.check, tt.strict, got, tt.want)
		}
	}
}

func TestKindFor(t *testing.T) {
	tests := map[Check]model.ViolationKind{
		CheckEndCondition: model.KindEndConditionExceeded,
		CheckTimeJump:     model.KindTimeJump,
		CheckCompression:  model.KindScopeExceeded,
		CheckLengthCap:    model.KindScopeExceeded,
		CheckParticipants: model.KindUnauthorizedCharacter,
	}
	for check, want := range tests {
		if got := KindFor(check); got != want {
			t.Errorf("KindFor(%s) = %s, want %s", check, got, want)
		}
	}
}

func TestSeverityFor(t *testing.T) {
	if SeverityFor(CheckEndCondition) != model.SeverityWarning {
		t.Error("end condition should be a warning")
	}
	for _, c := range []Check{CheckTimeJump, CheckCompression, CheckLengthCap, CheckParticipants} {
		if SeverityFor(c) != model.SeverityCritical {
			t.Errorf("%s should be critical", c)
		}
	}
}
