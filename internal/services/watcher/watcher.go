// Package watcher notices when the event database is modified by another process.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/vehicle-dashboard/internal/logger"
)

// DefaultDebounce is used when no debounce interval is given.
const DefaultDebounce = 250 * time.Millisecond

// companions are the SQLite side files written alongside the database.
var companions = []string{"", "-wal", "-journal", "-shm"}

// Watcher calls onChange at most once per debounce interval after the
// database file or one of its companions is written.
type Watcher struct {
	mu            sync.Mutex
	watcher       *fsnotify.Watcher
	onChange      func()
	onError       func(error)
	stopChan      chan struct{}
	doneChan      chan struct{}
	debounceTimer *time.Timer
	names         map[string]struct{}
	debounce      time.Duration
	stopped       bool
	running       sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets a callback for watcher errors. Errors are logged otherwise.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New starts watching the directory containing dbPath.
func New(dbPath string, onChange func(), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange callback is required")
	}

	w := &Watcher{
		onChange: onChange,
		debounce: DefaultDebounce,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		names:    make(map[string]struct{}, len(companions)),
	}
	for _, opt := range opts {
		opt(w)
	}

	base := filepath.Base(dbPath)
	for _, suffix := range companions {
		w.names[base+suffix] = struct{}{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = fw

	// Watch the directory (to catch file creation/deletion)
	dir := filepath.Dir(dbPath)
	if err := fw.Add(dir); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.watchLoop()
	return w, nil
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop() {
	defer close(w.doneChan)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.matches(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			} else {
				logger.Error("File watcher error", "error", err)
			}

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) matches(name string) bool {
	_, ok := w.names[filepath.Base(name)]
	return ok
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.running.Add(1)
	w.mu.Unlock()

	defer w.running.Done()
	w.onChange()
}

// Close stops the file watcher and waits for a callback already in progress.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	close(w.stopChan)
	err := w.watcher.Close()
	<-w.doneChan
	w.running.Wait()
	return err
}
