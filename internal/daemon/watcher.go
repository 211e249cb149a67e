// Package daemon provides the opt-in watch mode that triggers
// reconciliation passes when the local mirror changes.
package daemon

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DBWatcher watches the database file and its WAL for writes.
// It uses fsnotify for cross-platform file system event monitoring.
type DBWatcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dbPath  string
}

// NewDBWatcher creates a watcher for the database at dbPath.
// The watcher must be started with Start() before it will emit events.
func NewDBWatcher(dbPath string) (*DBWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &DBWatcher{
		watcher: watcher,
		events:  make(chan struct{}, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		dbPath:  dbPath,
	}, nil
}

// Start begins watching the database's directory for writes to the database
// file or its WAL.
func (w *DBWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	// Watch the parent directory: SQLite recreates the WAL file, and
	// watching the file directly would lose the watch on rotation.
	if err := w.watcher.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("failed to watch database directory: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and cleans up resources. It blocks until the event
// processing goroutine has exited.
func (w *DBWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel that signals a database change.
// This channel is closed when the watcher is stopped.
func (w *DBWatcher) Events() <-chan struct{} {
	return w.events
}

// Errors returns the channel that emits watcher errors.
// This channel is closed when the watcher is stopped.
func (w *DBWatcher) Errors() <-chan error {
	return w.errors
}

// IsRunning reports whether the watcher is currently running.
func (w *DBWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *DBWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.relevant(event) {
				continue
			}

			select {
			case w.events <- struct{}{}:
			case <-w.done:
				return
			default:
				// A change is already queued; coalesce.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// relevant reports whether the event is a write to the database file or one
// of its SQLite side files.
func (w *DBWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	return strings.HasPrefix(filepath.Base(event.Name), filepath.Base(w.dbPath))
}
