package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls map[string]int
	seen  chan string
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{calls: make(map[string]int), seen: make(chan string, 16)}
}

func (f *fakeHandler) ProcessFile(_ context.Context, path string) {
	f.mu.Lock()
	f.calls[filepath.Base(path)]++
	f.mu.Unlock()
	f.seen <- filepath.Base(path)
}

func (f *fakeHandler) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestIgnored(t *testing.T) {
	cases := map[string]bool{
		"photo.png":              false,
		"photo_thumb.jpg":        true,
		".photo_thumb.jpg.1.tmp": true,
		".hidden":                false,
		".cover.png":             false,
		"thumb.jpg":              false,
	}
	for name, want := range cases {
		if got := Ignored(name); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRun_DebouncesAndFilters(t *testing.T) {
	dir := t.TempDir()
	h := newFakeHandler()
	w := New(dir, 200*time.Millisecond, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "photo.png")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	for _, name := range []string{"photo_thumb.jpg", ".photo_thumb.jpg.0f8a.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case name := <-h.seen:
		if name != "photo.png" {
			t.Errorf("processed %s, want photo.png", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("photo.png was never processed")
	}

	// Nothing else should arrive once the burst has settled.
	time.Sleep(400 * time.Millisecond)
	if n := h.count("photo.png"); n != 1 {
		t.Errorf("photo.png processed %d times, want 1", n)
	}
	if n := h.count("photo_thumb.jpg") + h.count(".photo_thumb.jpg.0f8a.tmp"); n != 0 {
		t.Errorf("ignored files processed %d times", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CancelDropsPending(t *testing.T) {
	dir := t.TempDir()
	h := newFakeHandler()
	w := New(dir, time.Hour, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "late.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := h.count("late.png"); n != 0 {
		t.Errorf("late.png processed %d times after cancel", n)
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), time.Second, newFakeHandler())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
