package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	os.WriteFile(path, []byte("strict: false\n"), 0600)

	var calls atomic.Int32
	r, err := New([]string{path, "", filepath.Join(dir, "missing.yaml")}, func() error {
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Watching() != 1 {
		t.Fatalf("expected 1 watched file, got %d", r.Watching())
	}
	r.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// several quick writes collapse into one reload
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("strict: true\n"), 0600)
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	cancel()
	<-done

	if calls.Load() != 1 {
		t.Errorf("expected 1 debounced reload, got %d", calls.Load())
	}
}

func TestIgnoresOtherFilesInDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	os.WriteFile(path, []byte("id: a\n"), 0600)

	var calls atomic.Int32
	r, err := New([]string{path}, func() error {
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0600)
	time.Sleep(200 * time.Millisecond)

	cancel()
	<-done

	if calls.Load() != 0 {
		t.Errorf("expected no reload for unrelated file, got %d", calls.Load())
	}
}
