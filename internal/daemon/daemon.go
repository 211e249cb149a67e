package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/session"
	syncpkg "github.com/simplebaby/babysync/internal/sync"
)

// Reporter receives the report of every completed pass. The dashboard
// implements this to stream reports to connected clients.
type Reporter interface {
	Publish(table string, report *syncpkg.Report)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait after a change before running
	// a pass, batching rapid local writes together.
	DebounceInterval time.Duration

	// Cooldown is how long after a pass to ignore database events, so
	// the pass's own local writes do not immediately re-trigger it.
	Cooldown time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Cooldown:         2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the local mirror and runs a reconciliation pass for every
// registered table when it changes. The sync engine itself stays strictly
// on-demand; the daemon is the caller invoking it.
type Daemon struct {
	engine   syncpkg.Engine
	resolver *session.Resolver
	tables   []*schema.Table
	reporter Reporter
	config   *Config

	watcher *DBWatcher

	mu          sync.Mutex
	dirty       bool
	ignoreUntil time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon syncing the given tables through the engine.
//
// dbPath is the database file to watch. reporter may be nil.
func New(engine syncpkg.Engine, resolver *session.Resolver, tables []*schema.Table, dbPath string, reporter Reporter, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := NewDBWatcher(dbPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:   engine,
		resolver: resolver,
		tables:   tables,
		reporter: reporter,
		config:   config,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs an initial pass, then watches for local changes and runs
// follow-up passes with debouncing. This blocks until ctx is cancelled or an
// error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting watch daemon")

	if err := d.RunPass(ctx); err != nil {
		return fmt.Errorf("initial pass failed: %w", err)
	}

	if err := d.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	d.wg.Add(2)
	go d.watchEvents()
	go d.processDirty()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping watch daemon")

	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error stopping watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Watch daemon stopped")
	return nil
}

// RunPass resolves the active child and synchronizes every registered table
// once. Table-level failures are logged and do not stop the remaining
// tables; the pass errors only when no child can be resolved.
func (d *Daemon) RunPass(ctx context.Context) error {
	res := d.resolver.Resolve()
	if !res.OK {
		return fmt.Errorf("cannot sync: %s", res.Reason)
	}

	for _, table := range d.tables {
		report, err := d.engine.Synchronize(ctx, table, res.ChildID)
		if err != nil {
			d.config.Logger.Printf("Error syncing %s: %v", table.Kind, err)
			continue
		}

		if !report.Clean() {
			d.config.Logger.Printf("Pass for %s completed with %d error(s)", table.Kind, len(report.Errors))
		}
		if d.reporter != nil {
			d.reporter.Publish(table.Kind, report)
		}
	}

	d.mu.Lock()
	d.ignoreUntil = time.Now().Add(d.config.Cooldown)
	d.mu.Unlock()

	return nil
}

// watchEvents marks the mirror dirty on database writes, ignoring the echo
// of the daemon's own pass.
func (d *Daemon) watchEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case _, ok := <-d.watcher.Events():
			if !ok {
				return
			}

			d.mu.Lock()
			if time.Now().After(d.ignoreUntil) {
				d.dirty = true
			}
			d.mu.Unlock()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processDirty runs a pass when the mirror has been dirty for a debounce
// interval.
func (d *Daemon) processDirty() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.mu.Lock()
			run := d.dirty
			d.dirty = false
			d.mu.Unlock()

			if !run {
				continue
			}

			d.config.Logger.Println("Local change detected, running pass")
			if err := d.RunPass(d.ctx); err != nil {
				d.config.Logger.Printf("Pass failed: %v", err)
			}
		}
	}
}
