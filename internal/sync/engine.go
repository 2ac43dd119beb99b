// Package sync reconciles the local cache with the remote system: it drains
// the pending-operation queue, pulls new and updated records (incrementally
// where possible), merges with remote-authoritative semantics, and recomputes
// derived balance state.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/queue"
	"github.com/splitsync/splitsync/internal/remote"
	"github.com/splitsync/splitsync/internal/storage"
)

// Engine owns one local cache and one remote endpoint. Instances are
// constructed explicitly and passed by reference to UI code; there is no
// package-level singleton, so tests can build isolated engines.
type Engine struct {
	store  storage.Store
	client remote.Client
	queue  *queue.Queue
	cfg    Config

	// syncing is the busy flag: at most one sync cycle runs at a time, and a
	// request arriving while one is in progress is dropped, not queued.
	syncing atomic.Bool

	mu       sync.Mutex
	online   bool
	lastErr  string
	onChange func(Snapshot)
}

// Status is the engine's externally visible sync state.
type Status struct {
	// Online reflects the last connectivity report from the caller.
	Online bool

	// Syncing is true while a cycle is in flight.
	Syncing bool

	// LastSync is the time of the last successful expense sync, zero if
	// never synced.
	LastSync time.Time

	// Stale is true when LastSync is older than the staleness window (or
	// there has never been a sync).
	Stale bool

	// LastError is the message of the most recent failed cycle, cleared by
	// the next successful one.
	LastError string

	// FailedOps is the number of queued operations currently in failed
	// status, surfaced in aggregate rather than blocking other work.
	FailedOps int
}

// New creates an engine over the given store and remote client.
func New(store storage.Store, client remote.Client, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:  store,
		client: client,
		queue:  queue.New(store, cfg.MaxRetries),
		cfg:    cfg,
		online: true,
	}
}

// OnChange registers a callback invoked with a fresh snapshot after every
// local mutation and every successful sync cycle. Must be set before any
// other method is used.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// SetOnline records a connectivity transition. Coming back online triggers
// an immediate sync cycle.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		slog.Info("Connectivity restored, syncing")
		if err := e.Sync(ctx); err != nil {
			slog.Error("Sync after reconnect failed", "error", err)
		}
	}
}

// Status reports the current sync state.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	online := e.online
	lastErr := e.lastErr
	e.mu.Unlock()

	st := Status{
		Online:    online,
		Syncing:   e.syncing.Load(),
		LastError: lastErr,
		Stale:     true,
	}

	if last, err := e.store.LastSync(ctx, models.EntityExpense); err == nil && !last.IsZero() {
		st.LastSync = last
		st.Stale = time.Since(last) > e.cfg.StalenessWindow
	}
	if n, err := e.queue.CountFailed(ctx); err == nil {
		st.FailedOps = n
	}
	return st
}

// Run executes the periodic sync loop until ctx is canceled. The cache is
// served immediately; an initial cycle runs only when it is stale.
func (e *Engine) Run(ctx context.Context) {
	if e.Status(ctx).Stale {
		if err := e.Sync(ctx); err != nil {
			slog.Error("Initial sync failed", "error", err)
		}
	}

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sync(ctx); err != nil {
				slog.Error("Periodic sync failed", "error", err)
			}
		}
	}
}

// recordCycleError stores a failed cycle's message for Status.
func (e *Engine) recordCycleError(err error) {
	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
}

// clearCycleError wipes the error state after a successful cycle.
func (e *Engine) clearCycleError() {
	e.mu.Lock()
	e.lastErr = ""
	e.mu.Unlock()
}

// notify publishes a fresh snapshot to the registered callback.
func (e *Engine) notify(ctx context.Context) {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn == nil {
		return
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		slog.Error("Failed to build change snapshot", "error", err)
		return
	}
	fn(*snap)
}
