package guard

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/sceneguard/internal/model"
)

func TestCheckCompleteMatchesStreaming(t *testing.T) {
	c := model.SceneConstraints{TargetLength: 2000, EndCondition: "문을 닫고 돌아섰다."}
	text := "그는 잠시 망설이다가 문을 닫고 돌아섰다. 복도는 어두웠다."

	got, err := CheckComplete(text, c)
	if err != nil {
		t.Fatal(err)
	}

	g := mustGuard(t, c)
	g.ProcessFragment(text)
	if diff := cmp.Diff(g.Result(), got); diff != "" {
		t.Errorf("post-process result differs from streaming (-stream +check):\n%s", diff)
	}
}

func TestCheckCompleteScansWholeText(t *testing.T) {
	// the time jump sits far before the last window
	text := "그녀는 걸었다. 다음 날 그녀는 다시 걸었다. " + strings.Repeat("바람이 불었다. ", 300)

	r, err := CheckComplete(text, model.SceneConstraints{})
	if err != nil {
		t.Fatal(err)
	}
	if r.WasTerminated {
		t.Fatalf("expected lenient check to keep the text, got reason %q", r.TerminationReason)
	}
	if n := r.CountByKind(model.KindTimeJump); n != 1 {
		t.Errorf("expected 1 time jump, got %d", n)
	}
	if r.Content != text {
		t.Error("expected content unchanged")
	}
}

func TestCheckCompleteStrict(t *testing.T) {
	text := "그녀는 걸었다. 다음 날 그녀는 다시 걸었다."
	r, err := CheckComplete(text, model.SceneConstraints{}, WithStrict(true))
	if err != nil {
		t.Fatal(err)
	}
	if r.Content != "그녀는 걸었다. "+marker {
		t.Errorf("unexpected content %q", r.Content)
	}
}

func TestChunks(t *testing.T) {
	text := "가나다라마바사"
	got := Chunks(text, 3)
	want := []string{"가나다", "라마바", "사"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks (-want +got):\n%s", diff)
	}
	for _, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %q splits a character", c)
		}
	}
	if Chunks("", 3) != nil {
		t.Error("expected nil for empty text")
	}
	if len(Chunks(text, 0)) != 1 {
		t.Error("expected a single chunk for non-positive size")
	}
}

func FuzzProcessFragment(f *testing.F) {
	f.Add("그는 문을 닫고 돌아섰다.", 7)
	f.Add("며칠이 지나 그는 다시 돌아왔다", 3)
	f.Add("\xff\xfe 민준", 1)

	f.Fuzz(func(t *testing.T, text string, size int) {
		if size <= 0 || size > 64 {
			size = 8
		}
		g, err := New(model.SceneConstraints{TargetLength: 200, EndCondition: "문을 닫고 돌아섰다."},
			WithRoster([]string{"지훈", "민준"}), WithStrict(true))
		if err != nil {
			t.Fatal(err)
		}
		for len(text) > 0 && !g.Terminated() {
			n := size
			if n > len(text) {
				n = len(text)
			}
			g.ProcessFragment(text[:n])
			text = text[n:]
		}
		r := g.Result()
		if r.WasTerminated && !strings.HasSuffix(r.Content, marker) {
			t.Errorf("terminated content must end with the marker: %q", r.Content)
		}
		if r.EndConditionReached && r.CountByKind(model.KindEndConditionExceeded) == 0 {
			t.Error("end condition reached without evidence")
		}
	})
}
