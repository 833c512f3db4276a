// ABOUTME: Sync engine pushing local data to the cloud and pulling remote changes
// ABOUTME: Handles batching, local-wins merging, offline queueing, and backoff retries

package sync

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/kv"
	"github.com/harperreed/leadsync/models"
)

const (
	// defaultBatchSize is how many businesses go in one push request.
	defaultBatchSize = 3000

	// defaultBatchDelay spaces consecutive batch requests so a large push
	// does not hammer the server.
	defaultBatchDelay = time.Second

	// backoffBase and backoffMax bound the retry backoff curve:
	// base<<retries, capped at max.
	backoffBase = time.Second
	backoffMax  = 30 * time.Second

	// maxRetries is when a queued operation gets dropped. The data itself is
	// safe in the local store and the next full push re-sends it.
	maxRetries = 10
)

// lastSyncKey is where the engine persists the last successful sync time.
const lastSyncKey = "sync/last_sync"

// SyncResult reports what a sync pass accomplished. Partial failure is an
// ordinary outcome: Errors holds what went wrong while SyncedCount holds
// what still made it through.
type SyncResult struct {
	Success     bool        `json:"success"`
	SyncedCount int         `json:"synced_count"`
	FailedCount int         `json:"failed_count"`
	Errors      []SyncError `json:"errors,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

func (r *SyncResult) addError(err *SyncError) {
	r.Success = false
	r.Errors = append(r.Errors, *err)
}

// EngineOptions tunes the engine. Zero values get defaults.
type EngineOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	Now        func() time.Time
}

// Engine performs the actual sync work. It owns no goroutines; the
// coordinator decides when its methods run.
type Engine struct {
	appDB   *sql.DB
	owner   string
	client  *APIClient
	store   *kv.Store
	pending *PendingQueue
	conn    *Connectivity
	logger  *log.Logger

	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
}

// NewEngine wires an engine from its dependencies. If logger is nil,
// log.Default() is used.
func NewEngine(appDB *sql.DB, owner string, client *APIClient, store *kv.Store, conn *Connectivity, opts EngineOptions, logger *log.Logger) *Engine {
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		appDB:      appDB,
		owner:      owner,
		client:     client,
		store:      store,
		pending:    NewPendingQueue(store),
		conn:       conn,
		logger:     logger,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		now:        opts.Now,
	}
}

// Pending exposes the engine's queue for status display.
func (e *Engine) Pending() *PendingQueue {
	return e.pending
}

// IsOnline reports the connectivity monitor's current view.
func (e *Engine) IsOnline() bool {
	return e.conn.IsOnline()
}

// EnableOfflineMode pins the engine offline; pushes queue instead of
// hitting the network.
func (e *Engine) EnableOfflineMode(enabled bool) {
	e.conn.SetForcedOffline(enabled)
}

// LastSyncTimestamp returns the time of the last successful sync, or zero
// if nothing has synced yet.
func (e *Engine) LastSyncTimestamp() time.Time {
	raw, err := e.store.Get([]byte(lastSyncKey))
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e *Engine) setLastSync(t time.Time) {
	if err := e.store.Set([]byte(lastSyncKey), []byte(t.UTC().Format(time.RFC3339Nano))); err != nil {
		e.logger.Printf("[sync] failed to persist last sync timestamp: %v", err)
	}
}

// SyncToCloud pushes the full local business collection and the route to the
// server. Offline or on a retryable failure, the push is queued for later;
// the result says so rather than returning an error.
func (e *Engine) SyncToCloud(ctx context.Context) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: e.now()}

	if !e.conn.IsOnline() {
		result.FailedCount = e.localItemCount()
		e.queuePush(OpPushBusinesses, result)
		e.queuePush(OpPushRoute, result)
		result.addError(newSyncError(ErrorNetwork, "offline, push queued"))
		return result
	}

	if err := e.pushBusinesses(ctx, result); err != nil {
		e.handlePushFailure(OpPushBusinesses, err, result)
		return result
	}
	if err := e.pushRoute(ctx, result); err != nil {
		e.handlePushFailure(OpPushRoute, err, result)
		return result
	}

	e.setLastSync(e.now())
	return result
}

// localItemCount sizes an offline push result: everything that would have
// been sent counts as failed.
func (e *Engine) localItemCount() int {
	n := 0
	if businesses, err := db.ListBusinesses(e.appDB, e.owner, db.BusinessFilter{}); err == nil {
		n += len(businesses)
	}
	if stops, err := db.ListRouteStops(e.appDB, e.owner); err == nil {
		n += len(stops)
	}
	return n
}

// pushBusinesses sends the local collection in batches, first batch as a
// replace so the server ends up mirroring local state exactly.
func (e *Engine) pushBusinesses(ctx context.Context, result *SyncResult) *SyncError {
	businesses, err := db.ListBusinesses(e.appDB, e.owner, db.BusinessFilter{})
	if err != nil {
		return newSyncError(ErrorData, "failed to read local businesses: %v", err)
	}

	total := len(businesses)
	e.logger.Printf("[sync] pushing %d businesses in batches of %d", total, e.batchSize)

	mode := PushReplace
	for start := 0; start == 0 || start < total; start += e.batchSize {
		if start > 0 {
			if err := e.sleep(ctx); err != nil {
				result.FailedCount += total - start
				return newSyncError(ErrorNetwork, "push cancelled: %v", err)
			}
		}
		end := start + e.batchSize
		if end > total {
			end = total
		}
		count, err := e.client.PushBusinesses(ctx, businesses[start:end], mode)
		if err != nil {
			result.FailedCount += total - start
			return asSyncError(err)
		}
		result.SyncedCount += count
		mode = PushAppend
	}
	return nil
}

func (e *Engine) pushRoute(ctx context.Context, result *SyncResult) *SyncError {
	stops, err := db.ListRouteStops(e.appDB, e.owner)
	if err != nil {
		return newSyncError(ErrorData, "failed to read local route: %v", err)
	}
	count, err := e.client.PushRoute(ctx, stops)
	if err != nil {
		result.FailedCount += len(stops)
		return asSyncError(err)
	}
	result.SyncedCount += count
	return nil
}

// handlePushFailure records the error and queues a retry when retrying can
// help.
func (e *Engine) handlePushFailure(opType OperationType, serr *SyncError, result *SyncResult) {
	result.addError(serr)
	if serr.Retryable() {
		e.queuePush(opType, result)
	} else {
		e.logger.Printf("[sync] %s failed permanently: %v", opType, serr)
	}
}

func (e *Engine) queuePush(opType OperationType, result *SyncResult) {
	if _, err := e.pending.Enqueue(opType, e.now()); err != nil {
		e.logger.Printf("[sync] failed to queue %s: %v", opType, err)
		result.addError(newSyncError(ErrorQuota, "failed to queue %s: %v", opType, err))
	} else {
		e.logger.Printf("[sync] queued %s for retry", opType)
	}
}

// SyncFromCloud pulls the server collections and merges them into the local
// store. Local records modified after the last successful sync win over
// their remote counterparts; everything else takes the server's version.
func (e *Engine) SyncFromCloud(ctx context.Context) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: e.now()}

	if !e.conn.IsOnline() {
		result.addError(newSyncError(ErrorNetwork, "offline, pull skipped"))
		return result
	}

	remote, serverTime, err := e.client.FetchBusinesses(ctx)
	if err != nil {
		result.addError(asSyncError(err))
		return result
	}

	local, dberr := db.ListBusinesses(e.appDB, e.owner, db.BusinessFilter{})
	if dberr != nil {
		result.addError(newSyncError(ErrorData, "failed to read local businesses: %v", dberr))
		return result
	}

	lastSync := e.LastSyncTimestamp()
	merged, kept := mergeBusinesses(local, remote, lastSync)
	if kept > 0 {
		e.logger.Printf("[sync] kept %d locally-modified businesses over remote versions", kept)
	}

	if err := db.ReplaceBusinesses(e.appDB, e.owner, merged); err != nil {
		result.addError(newSyncError(ErrorData, "failed to store pulled businesses: %v", err))
		return result
	}
	result.SyncedCount += len(merged)

	if serr := e.pullRoute(ctx, lastSync, result); serr != nil {
		result.addError(serr)
		return result
	}

	if serverTime.IsZero() {
		serverTime = e.now()
	}
	e.setLastSync(serverTime)
	return result
}

func (e *Engine) pullRoute(ctx context.Context, lastSync time.Time, result *SyncResult) *SyncError {
	remoteStops, err := e.client.FetchRoute(ctx)
	if err != nil {
		return asSyncError(err)
	}

	localStops, dberr := db.ListRouteStops(e.appDB, e.owner)
	if dberr != nil {
		return newSyncError(ErrorData, "failed to read local route: %v", dberr)
	}

	// The route is one unit: any local change since the last sync keeps the
	// whole local route.
	for _, stop := range localStops {
		if stop.ModifiedAt().After(lastSync) {
			e.logger.Printf("[sync] keeping locally-modified route over remote version")
			return nil
		}
	}

	// Likewise a remote route with nothing newer than the last sync is a
	// stale pull and must not replace local state.
	if !lastSync.IsZero() {
		fresh := false
		for _, stop := range remoteStops {
			if stop.ModifiedAt().After(lastSync) {
				fresh = true
				break
			}
		}
		if !fresh {
			return nil
		}
	}

	if err := db.ReplaceRouteStops(e.appDB, e.owner, remoteStops); err != nil {
		return newSyncError(ErrorData, "failed to store pulled route: %v", err)
	}
	result.SyncedCount += len(remoteStops)
	return nil
}

// mergeBusinesses resolves the pulled collection against local state.
// A local record modified after lastSync wins over the remote copy, and a
// locally-added record missing remotely survives the merge. Remote records
// not modified since lastSync are stale and never applied: whatever local
// holds for that ID stands, and a locally-deleted record stays deleted.
// Local records the server no longer has, and that have not changed since
// the last sync, were deleted elsewhere and drop out. A zero lastSync is
// the first sync and accepts everything remote.
func mergeBusinesses(local, remote []models.Business, lastSync time.Time) ([]models.Business, int) {
	localByID := make(map[string]models.Business, len(local))
	for _, b := range local {
		localByID[b.ID] = b
	}

	firstSync := lastSync.IsZero()
	kept := 0
	merged := make([]models.Business, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		seen[r.ID] = true
		l, ok := localByID[r.ID]
		if ok && l.ModifiedAt().After(lastSync) {
			merged = append(merged, l)
			kept++
			continue
		}
		if firstSync || r.ModifiedAt().After(lastSync) {
			merged = append(merged, r)
			continue
		}
		if ok {
			merged = append(merged, l)
		}
	}
	for _, l := range local {
		if !seen[l.ID] && l.ModifiedAt().After(lastSync) {
			merged = append(merged, l)
			kept++
		}
	}
	return merged, kept
}

// RetryFailedOperations runs queued operations whose backoff has elapsed.
// The delay doubles per attempt up to the cap; operations stay queued until
// they succeed.
func (e *Engine) RetryFailedOperations(ctx context.Context) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: e.now()}

	ops, err := e.pending.List()
	if err != nil {
		result.addError(newSyncError(ErrorQuota, "failed to read pending queue: %v", err))
		return result
	}
	if len(ops) == 0 {
		return result
	}
	if !e.conn.IsOnline() {
		result.addError(newSyncError(ErrorNetwork, "offline, %d operations still queued", len(ops)))
		return result
	}

	now := e.now()
	for i := range ops {
		op := &ops[i]
		if op.RetryCount >= maxRetries {
			e.logger.Printf("[sync] dropping %s after %d failed attempts (last error: %s)", op.Type, op.RetryCount, op.LastError)
			if err := e.pending.Remove(op.ID); err != nil {
				e.logger.Printf("[sync] failed to drop %s: %v", op.Type, err)
			}
			continue
		}
		if now.Before(nextAttemptAt(op)) {
			continue
		}

		serr := e.runPending(ctx, op, result)
		if serr == nil {
			if err := e.pending.Remove(op.ID); err != nil {
				e.logger.Printf("[sync] failed to dequeue %s: %v", op.Type, err)
			}
			e.logger.Printf("[sync] queued %s succeeded after %d retries", op.Type, op.RetryCount)
			continue
		}

		op.RetryCount++
		op.LastAttempt = now
		op.LastError = serr.Message
		if err := e.pending.Update(op); err != nil {
			e.logger.Printf("[sync] failed to update pending %s: %v", op.Type, err)
		}
		result.addError(serr)
	}
	return result
}

func (e *Engine) runPending(ctx context.Context, op *PendingOperation, result *SyncResult) *SyncError {
	switch op.Type {
	case OpPushBusinesses:
		return e.pushBusinesses(ctx, result)
	case OpPushRoute:
		return e.pushRoute(ctx, result)
	}
	return newSyncError(ErrorData, "unknown pending operation type %q", op.Type)
}

// nextAttemptAt computes when an operation becomes eligible again:
// base<<retries after the last attempt, capped at backoffMax.
func nextAttemptAt(op *PendingOperation) time.Time {
	delay := backoffBase << uint(op.RetryCount)
	if delay > backoffMax || delay <= 0 {
		delay = backoffMax
	}
	last := op.LastAttempt
	if last.IsZero() {
		return op.CreatedAt
	}
	return last.Add(delay)
}

// sleep waits the inter-batch delay, honoring cancellation.
func (e *Engine) sleep(ctx context.Context) error {
	if e.batchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// asSyncError coerces any error to a *SyncError, defaulting to the network
// bucket for unclassified transport failures.
func asSyncError(err error) *SyncError {
	if serr, ok := err.(*SyncError); ok {
		return serr
	}
	return newSyncError(ErrorNetwork, "%v", err)
}
