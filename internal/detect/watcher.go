package detect

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a filesystem change notification.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one coalesced filesystem change.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher delivers debounced batches of filesystem changes under a root.
// The engine owns the debouncing; the underlying fsnotify watcher just
// streams raw events. Bursts of events inside the debounce window are
// coalesced into a single batch keyed by path.
type Watcher struct {
	fs       *fsnotify.Watcher
	root     string
	debounce time.Duration
	onBatch  func([]Change)

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// NewWatcher creates a watcher rooted at root. onBatch is invoked from the
// watcher goroutine with each debounced batch of changes.
func NewWatcher(root string, debounce time.Duration, onBatch func([]Change)) (*Watcher, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fsw,
		root:     root,
		debounce: debounce,
		onBatch:  onBatch,
		stopCh:   make(chan struct{}),
	}

	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.watchDirRecursive(root)

	return w, nil
}

// watchDirRecursive adds all subdirectories to the watcher. fsnotify only
// watches directories, not trees.
func (w *Watcher) watchDirRecursive(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			_ = w.fs.Add(path)
		}
		return nil
	})
}

// Start begins delivering batches. Runs until Stop is called.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fs.Close()
}

// loop processes raw fsnotify events, coalescing bursts into batches.
// Many editors produce several events for a single save; the debounce
// timer collapses them.
func (w *Watcher) loop() {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial fire

	pending := make(map[string]Change)

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}

			kind, relevant := changeKind(ev.Op)
			if !relevant {
				continue
			}

			// Newly created directories must be added to the watch set.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !skipDirs[filepath.Base(ev.Name)] {
						_ = w.fs.Add(ev.Name)
					}
					continue
				}
			}

			pending[ev.Name] = Change{Path: ev.Name, Kind: kind}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			pending = make(map[string]Change)
			w.onBatch(batch)

		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

// changeKind maps fsnotify ops onto the engine's change kinds.
func changeKind(op fsnotify.Op) (ChangeKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return ChangeAdded, true
	case op&fsnotify.Write != 0:
		return ChangeModified, true
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return ChangeDeleted, true
	default:
		return "", false
	}
}
