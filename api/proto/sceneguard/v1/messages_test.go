package sceneguardv1

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/scene"
)

func TestCheckRequestThroughStruct(t *testing.T) {
	strict := true
	in := CheckRequest{
		SessionID: "g-1",
		Scene: scene.Scene{
			ID:           "s-1",
			TargetLength: 3000,
			EndCondition: "민준이 우산을 건넨다",
			Characters:   []string{"민준", "서연"},
			Strict:       &strict,
		},
		Text: "비가 내렸다.",
	}
	st, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out CheckRequest
	if err := Decode(st, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("request changed in transit (-want +got):\n%s", diff)
	}
}

func TestStreamReplyKeepsEmptyFragment(t *testing.T) {
	in := StreamReply{
		SessionID: "g-1",
		Fragment:  &model.FragmentResult{ShouldContinue: false, ProcessedFragment: ""},
	}
	st, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out StreamReply
	if err := Decode(st, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fragment == nil || out.Fragment.ShouldContinue {
		t.Errorf("expected stop fragment, got %+v", out.Fragment)
	}
	if out.Result != nil {
		t.Errorf("expected no result, got %+v", out.Result)
	}
}

func TestStreamRequestEmptyFragmentIsPresent(t *testing.T) {
	empty := ""
	st, _ := Encode(StreamRequest{Fragment: &empty})
	var out StreamRequest
	Decode(st, &out)
	if out.Fragment == nil {
		t.Error("an empty fragment should still decode as present")
	}
}
