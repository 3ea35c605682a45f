package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, 50*time.Millisecond, []string{"node_modules"}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatalf("no change signal")
	}
}

func TestWriteTriggersChange(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitChange(t, w)
}

func TestBurstCoalesces(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	for i := 0; i < 10; i++ {
		name := filepath.Join(root, "f"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	waitChange(t, w)

	// Quiet period: no second signal should be pending after the burst.
	time.Sleep(200 * time.Millisecond)
	select {
	case _, ok := <-w.Changes():
		if ok {
			t.Fatalf("unexpected second signal")
		}
	default:
	}
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitChange(t, w)

	// Give the create handler a beat to add the new directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitChange(t, w)
}

func TestIgnoredDirectoryStaysQuiet(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	if err := os.Mkdir(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	select {
	case <-w.Changes():
		t.Fatalf("ignored directory produced a signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCloseReleasesChanges(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-w.Changes():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("changes never closed")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
