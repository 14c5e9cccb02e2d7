package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay collapses bursts of filesystem events into one callback.
// Editors and atomic-rename writers emit several events per save.
const debounceDelay = 100 * time.Millisecond

// FileWatcher invokes a callback when a single file changes on disk.
//
// It watches the file's parent directory rather than the file itself, so
// atomic replace (write temp, rename over) and delete-then-recreate are
// both observed. Used to hot-reload credentials while the event stream
// is running.
type FileWatcher struct {
	fw       *fsnotify.Watcher
	path     string
	onChange func()

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// WatchFile starts watching a file for changes.
//
// Parameters:
//   - path: The file to watch (its parent directory must exist)
//   - onChange: Called after the file is created, modified, or removed
//
// Returns:
//   - *FileWatcher: The running watcher
//   - error: Any error that occurred starting the watch
func WatchFile(path string, onChange func()) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &FileWatcher{
		fw:       fw,
		path:     filepath.Clean(path),
		onChange: onChange,
	}
	go w.loop()
	return w, nil
}

// loop consumes filesystem events until the underlying watcher closes.
func (w *FileWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule()
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; keep watching.
		}
	}
}

// schedule arms (or re-arms) the debounce timer.
func (w *FileWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(debounceDelay, w.onChange)
}

// Close stops the watcher. A debounced callback already in flight may
// still complete; no new callbacks are scheduled after Close.
//
// Returns:
//   - error: Any error that occurred stopping the watch
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.fw.Close()
}
