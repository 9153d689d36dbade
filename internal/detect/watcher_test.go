package detect

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan []Change, 8)

	w, err := NewWatcher(dir, 50*time.Millisecond, func(b []Change) { batches <- b })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case batch := <-batches:
		if len(batch) == 0 {
			t.Fatal("empty batch delivered")
		}
		found := false
		for _, c := range batch {
			if c.Path == path {
				found = true
			}
		}
		if !found {
			t.Errorf("batch %v missing %s", batch, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan []Change, 8)

	w, err := NewWatcher(dir, 100*time.Millisecond, func(b []Change) { batches <- b })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	// Several rapid writes to the same file must collapse into one change.
	path := filepath.Join(dir, "burst.go")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case batch := <-batches:
		count := 0
		for _, c := range batch {
			if c.Path == path {
				count++
			}
		}
		if count != 1 {
			t.Errorf("burst produced %d entries for one path, want 1", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), time.Millisecond, nil); err == nil {
		t.Fatal("NewWatcher accepted a missing root")
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), time.Millisecond, func([]Change) {})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}
