package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDBWatcher(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if w.IsRunning() {
		t.Error("newly created watcher should not be running")
	}
}

func TestDBWatcherStartStop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
}

func TestDBWatcherStartAlreadyRunning(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("second Start() should fail while running")
	}
}

func TestDBWatcherSignalsDatabaseWrite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(dbPath, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write database file: %v", err)
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for database write event")
	}
}

func TestDBWatcherSignalsWALWrite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// SQLite in WAL mode writes to the -wal side file, not the main file.
	if err := os.WriteFile(dbPath+"-wal", []byte("frames"), 0644); err != nil {
		t.Fatalf("failed to write WAL file: %v", err)
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for WAL write event")
	}
}

func TestDBWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("failed to write unrelated file: %v", err)
	}

	select {
	case <-w.Events():
		t.Error("should not receive event for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestDBWatcherStopClosesChannels(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	events := w.Events()
	errs := w.Errors()

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("events channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout verifying events channel closure")
	}

	select {
	case _, ok := <-errs:
		if ok {
			t.Error("errors channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout verifying errors channel closure")
	}
}

func TestDBWatcherStartNonexistentDirectory(t *testing.T) {
	w, err := NewDBWatcher("/nonexistent/dir/sync.db")
	if err != nil {
		t.Fatalf("NewDBWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err == nil {
		t.Error("Start() should fail for a nonexistent directory")
	}
}
