package confloader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// startWatcher watches a fresh sessfile.yaml and collects reported paths.
func startWatcher(t *testing.T, opts ...WatcherOption) (string, <-chan string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessfile.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	w, err := NewWatcher(opts...)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 32)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	w.StartAsync()
	time.Sleep(50 * time.Millisecond)
	return path, changed
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func expectChange(t *testing.T, changed <-chan string, want string) {
	t.Helper()
	select {
	case got := <-changed:
		if got != want {
			t.Errorf("OnChange() path = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange() not called within 2s")
	}
}

func expectQuiet(t *testing.T, changed <-chan string, d time.Duration) {
	t.Helper()
	select {
	case got := <-changed:
		t.Errorf("unexpected OnChange(%q)", got)
	case <-time.After(d):
	}
}

func TestNewWatcher_Options(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(WithWatcherLogger(logger), WithDebounce(time.Second))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.logger != logger {
		t.Error("WithWatcherLogger() not applied")
	}
	if w.debounce != time.Second {
		t.Errorf("debounce = %v, want 1s", w.debounce)
	}

	d, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer d.Stop()
	if d.debounce != DefaultDebounce {
		t.Errorf("default debounce = %v, want %v", d.debounce, DefaultDebounce)
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.Watch(filepath.Join(t.TempDir(), "absent", "sessfile.yaml")); err == nil {
		t.Error("Watch() succeeded for a missing directory")
	}
}

func TestWatcher_Write(t *testing.T) {
	path, changed := startWatcher(t, WithDebounce(0))
	writeFile(t, path, "log:\n  level: debug\n")
	expectChange(t, changed, path)
}

func TestWatcher_ReplacedByRename(t *testing.T) {
	path, changed := startWatcher(t, WithDebounce(0))

	staged := path + ".new"
	writeFile(t, staged, "log:\n  level: debug\n")
	if err := os.Rename(staged, path); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	expectChange(t, changed, path)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path, changed := startWatcher(t, WithDebounce(0))
	writeFile(t, filepath.Join(filepath.Dir(path), "unrelated.txt"), "x")
	expectQuiet(t, changed, 300*time.Millisecond)
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	path, changed := startWatcher(t, WithDebounce(150*time.Millisecond))

	for i := 0; i < 5; i++ {
		writeFile(t, path, "log:\n  level: warn\n")
		time.Sleep(10 * time.Millisecond)
	}
	expectChange(t, changed, path)
	expectQuiet(t, changed, 400*time.Millisecond)
}

func TestWatcher_EveryCallbackRuns(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		w.OnChange(func(string) { calls.Add(1) })
	}
	w.notify("/etc/sessfile.yaml")

	if got := calls.Load(); got != 3 {
		t.Errorf("callbacks run = %d, want 3", got)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.StartAsync()
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
