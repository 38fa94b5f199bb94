package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	r.paths = append(r.paths, p)
	r.mu.Unlock()
}

func (r *recorder) has(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.paths, p)
}

func (r *recorder) count(p string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.paths {
		if x == p {
			n++
		}
	}
	return n
}

func startWatch(t *testing.T, dir string, recursive bool) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rec := &recorder{}
	go func() {
		defer close(done)
		_ = Watch(ctx, dir, recursive, logger, rec.add)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatch_NewFileReported(t *testing.T) {
	dir := t.TempDir()
	rec := startWatch(t, dir, false)

	_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("---\ntags: [a]\n---\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("new.md")
	}, "new.md not reported")

	time.Sleep(2 * Debounce)
	if rec.has("ignored.txt") {
		t.Error("non-markdown file reported")
	}
}

func TestWatch_BurstCollapses(t *testing.T) {
	dir := t.TempDir()
	rec := startWatch(t, dir, false)

	path := filepath.Join(dir, "burst.md")
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("body"), 0o644)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("burst.md")
	}, "burst.md not reported")

	time.Sleep(2 * Debounce)
	if n := rec.count("burst.md"); n != 1 {
		t.Errorf("burst.md reported %d times, want 1", n)
	}
}

func TestWatch_RecursiveNewDir(t *testing.T) {
	dir := t.TempDir()
	rec := startWatch(t, dir, true)

	sub := filepath.Join(dir, "sub")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "nested.md"), []byte("body"), 0o644)

	want := filepath.Join("sub", "nested.md")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(want)
	}, "nested file in new directory not reported")
}

func TestWatch_FlatIgnoresSubdirs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	_ = os.MkdirAll(sub, 0o755)
	rec := startWatch(t, dir, false)

	_ = os.WriteFile(filepath.Join(sub, "nested.md"), []byte("body"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "top.md"), []byte("body"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("top.md")
	}, "top.md not reported")
	if rec.has(filepath.Join("sub", "nested.md")) {
		t.Error("flat watch reported a file in a subdirectory")
	}
}
