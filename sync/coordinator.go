// ABOUTME: Thin coordinator orchestrating push, pull, and retry passes
// ABOUTME: Owns component lifecycles, guards against overlapping syncs, and invalidates caches after pulls

package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/harperreed/leadsync/cache"
)

// Coordinator sequences the engine's operations and wires cache
// invalidation to pulled data. Construct with NewCoordinator and tear down
// with Destroy.
type Coordinator struct {
	engine *Engine
	cache  *cache.Manager
	conn   *Connectivity
	owner  string
	logger *log.Logger

	unsubscribe func()

	mu        sync.Mutex
	isSyncing bool
}

// Status is a point-in-time snapshot for display.
type Status struct {
	Online     bool
	Syncing    bool
	PendingOps int
	LastSync   time.Time
}

// NewCoordinator wires a coordinator. When connectivity comes back it
// drains the pending queue automatically. If logger is nil, log.Default()
// is used.
func NewCoordinator(engine *Engine, cacheMgr *cache.Manager, conn *Connectivity, owner string, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	c := &Coordinator{
		engine: engine,
		cache:  cacheMgr,
		conn:   conn,
		owner:  owner,
		logger: logger,
	}
	c.unsubscribe = conn.Subscribe(func(online bool) {
		if !online {
			return
		}
		result := engine.RetryFailedOperations(context.Background())
		if result.SyncedCount > 0 {
			logger.Printf("[sync] drained pending queue after reconnect, %d records synced", result.SyncedCount)
		}
	})
	return c
}

// Destroy unhooks the coordinator and tears down the connectivity monitor.
// The cache manager and stores belong to the caller.
func (c *Coordinator) Destroy() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.conn.Destroy()
}

// SyncNow runs a full push-then-pull pass. A pass already in flight makes
// this a no-op; the guard is advisory, protecting against double-triggered
// UI actions rather than serializing all access.
func (c *Coordinator) SyncNow(ctx context.Context) *SyncResult {
	c.mu.Lock()
	if c.isSyncing {
		c.mu.Unlock()
		c.logger.Printf("[sync] sync already in progress, skipping")
		return &SyncResult{Success: true, Timestamp: time.Now()}
	}
	c.isSyncing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.isSyncing = false
		c.mu.Unlock()
	}()

	pushed := c.engine.SyncToCloud(ctx)
	pulled := c.engine.SyncFromCloud(ctx)

	if pulled.SyncedCount > 0 {
		// Pulled data makes every cached view of it stale.
		c.cache.InvalidateRelated(cache.CategoryBusinesses, c.owner)
		c.cache.InvalidateRelated(cache.CategoryRoutes, c.owner)
	}

	return combineResults(pushed, pulled)
}

// Pull runs only the pull half of a sync pass, invalidating cached views of
// anything that came down.
func (c *Coordinator) Pull(ctx context.Context) *SyncResult {
	result := c.engine.SyncFromCloud(ctx)
	if result.SyncedCount > 0 {
		c.cache.InvalidateRelated(cache.CategoryBusinesses, c.owner)
		c.cache.InvalidateRelated(cache.CategoryRoutes, c.owner)
	}
	return result
}

// EnableOfflineMode pins the underlying engine offline or back online.
func (c *Coordinator) EnableOfflineMode(enabled bool) {
	c.engine.EnableOfflineMode(enabled)
}

// Retry runs one pass over the pending queue.
func (c *Coordinator) Retry(ctx context.Context) *SyncResult {
	return c.engine.RetryFailedOperations(ctx)
}

// Status reports the current sync state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	syncing := c.isSyncing
	c.mu.Unlock()

	pending, err := c.engine.Pending().Len()
	if err != nil {
		pending = 0
	}
	return Status{
		Online:     c.conn.IsOnline(),
		Syncing:    syncing,
		PendingOps: pending,
		LastSync:   c.engine.LastSyncTimestamp(),
	}
}

func combineResults(a, b *SyncResult) *SyncResult {
	out := &SyncResult{
		Success:     a.Success && b.Success,
		SyncedCount: a.SyncedCount + b.SyncedCount,
		FailedCount: a.FailedCount + b.FailedCount,
		Timestamp:   b.Timestamp,
	}
	out.Errors = append(out.Errors, a.Errors...)
	out.Errors = append(out.Errors, b.Errors...)
	return out
}
