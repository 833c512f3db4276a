// ABOUTME: Tests for the sync coordinator
// ABOUTME: Covers the overlap guard, cache invalidation after pulls, and status reporting

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/cache"
	"github.com/harperreed/leadsync/models"
)

func newTestCoordinator(t *testing.T, env *syncEnv) (*Coordinator, *cache.Manager) {
	t.Helper()
	cacheMgr := cache.New(env.store, cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(cacheMgr.Close)
	// The env owns the connectivity monitor's lifecycle.
	c := &Coordinator{engine: env.engine, cache: cacheMgr, conn: env.conn, owner: testOwner, logger: discardLogger()}
	return c, cacheMgr
}

func TestSyncNowInvalidatesCacheAfterPull(t *testing.T) {
	env := newSyncEnv(t, 100)
	coord, cacheMgr := newTestCoordinator(t, env)

	env.server.remoteBusinesses = []models.Business{{ID: "biz-1", Name: "Bar La Plaza"}}

	cacheMgr.Set(cache.CategoryBusinesses, []models.Business{{ID: "stale"}}, testOwner)
	cacheMgr.Set(cache.CategoryRoutes, []models.RouteStop{{BusinessID: "stale"}}, testOwner)
	cacheMgr.Set(cache.CategoryDatasets, map[string]int{"almansa": 1}, testOwner)

	result := coord.SyncNow(context.Background())
	require.True(t, result.Success, "sync should succeed: %v", result.Errors)

	assert.False(t, cacheMgr.Has(cache.CategoryBusinesses, testOwner), "pulled businesses invalidate the cache")
	assert.False(t, cacheMgr.Has(cache.CategoryRoutes, testOwner))
	assert.False(t, cacheMgr.Has(cache.CategoryDatasets, testOwner), "derived dataset summaries go stale too")
}

func TestSyncNowSkipsWhenCacheEmptyPull(t *testing.T) {
	env := newSyncEnv(t, 100)
	coord, cacheMgr := newTestCoordinator(t, env)

	cacheMgr.Set(cache.CategoryBusinesses, []models.Business{{ID: "b"}}, testOwner)

	// Nothing remote to pull: the cache keeps its entries.
	result := coord.SyncNow(context.Background())
	require.True(t, result.Success)
	assert.True(t, cacheMgr.Has(cache.CategoryBusinesses, testOwner), "an empty pull leaves the cache alone")
}

func TestSyncNowOverlapGuard(t *testing.T) {
	env := newSyncEnv(t, 100)
	coord, _ := newTestCoordinator(t, env)

	coord.mu.Lock()
	coord.isSyncing = true
	coord.mu.Unlock()

	result := coord.SyncNow(context.Background())
	assert.True(t, result.Success)
	assert.Empty(t, env.server.pushes(), "an overlapping sync request is a no-op")
}

func TestStatus(t *testing.T) {
	env := newSyncEnv(t, 100)
	coord, _ := newTestCoordinator(t, env)
	seedBusinesses(t, env, 5)

	status := coord.Status()
	assert.True(t, status.Online)
	assert.False(t, status.Syncing)
	assert.Equal(t, 0, status.PendingOps)
	assert.True(t, status.LastSync.IsZero(), "nothing has synced yet")

	env.engine.EnableOfflineMode(true)
	env.engine.SyncToCloud(context.Background())

	status = coord.Status()
	assert.False(t, status.Online)
	assert.Equal(t, 2, status.PendingOps, "queued push operations show in status")
}

func TestReconnectDrainsQueue(t *testing.T) {
	env := newSyncEnv(t, 100)
	seedBusinesses(t, env, 5)

	cacheMgr := cache.New(env.store, cache.Options{SweepInterval: time.Hour}, nil)
	t.Cleanup(cacheMgr.Close)
	coord := NewCoordinator(env.engine, cacheMgr, env.conn, testOwner, discardLogger())
	defer func() { coord.unsubscribe() }() // env owns conn teardown

	env.engine.EnableOfflineMode(true)
	env.engine.SyncToCloud(context.Background())
	count, err := env.engine.Pending().Len()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Coming back online fires the subscriber, which drains the queue.
	env.engine.EnableOfflineMode(false)

	count, err = env.engine.Pending().Len()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "reconnect should drain the pending queue")
	assert.NotEmpty(t, env.server.pushes(), "the queued push replays against the server")
}
