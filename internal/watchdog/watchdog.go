// Package watchdog keeps the page-scoped token backups in step with the persistent
// store and puts the access token back when the persistent slot is wiped.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

const DefaultInterval = 2 * time.Second

type Watchdog struct {
	mgr      *sessions.Manager
	watcher  storage.Watcher
	interval time.Duration

	mu          sync.Mutex
	lastAccess  string
	lastRefresh string
}

// New creates a watchdog. watcher may be nil when the persistent store cannot
// report changes; the periodic tick still runs.
func New(mgr *sessions.Manager, watcher storage.Watcher, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watchdog{mgr: mgr, watcher: watcher, interval: interval}
}

// Run blocks until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	w.mgr.Backup(ctx)

	var changes <-chan storage.Change
	if w.watcher != nil {
		ch, err := w.watcher.Watch(ctx)
		if err != nil {
			logger.Warnf("watchdog: change feed unavailable, relying on polling: %v", err)
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	logger.Infof("watchdog: started interval=%s change_feed=%t", w.interval, changes != nil)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("watchdog: stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.HandleChange(ctx, c)
		}
	}
}

// Tick runs one check: restore a missing access token, or refresh the backups
// when the stored tokens changed since the last tick.
func (w *Watchdog) Tick(ctx context.Context) {
	ts := w.mgr.Tokens()
	access := ts.Get(ctx, tokens.Access)
	if access == "" {
		if ts.BackupValue(ctx, tokens.Access) != "" && w.mgr.Restore(ctx) {
			logger.Infof("watchdog: access token was missing and has been restored")
		}
		return
	}
	refresh := ts.Get(ctx, tokens.Refresh)

	w.mu.Lock()
	changed := access != w.lastAccess || refresh != w.lastRefresh
	w.lastAccess, w.lastRefresh = access, refresh
	w.mu.Unlock()

	if changed {
		w.mgr.Backup(ctx)
	}
}

// HandleChange mirrors a token write observed on the persistent store.
func (w *Watchdog) HandleChange(ctx context.Context, c storage.Change) {
	w.mgr.MirrorChange(ctx, c)
}

// BeforeUnload snapshots the tokens into the backups. Called on shutdown.
func (w *Watchdog) BeforeUnload(ctx context.Context) {
	w.mgr.SnapshotBackups(ctx)
}
