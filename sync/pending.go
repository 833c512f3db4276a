// ABOUTME: Durable queue of sync operations that failed or were made offline
// ABOUTME: Persists to the kv store so queued work survives restarts

package sync

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadsync/kv"
)

const pendingPrefix = "sync/pending/"

// OperationType names what a queued operation will do when it runs.
type OperationType string

const (
	OpPushBusinesses OperationType = "push_businesses"
	OpPushRoute      OperationType = "push_route"
)

// PendingOperation is one unit of deferred sync work.
type PendingOperation struct {
	ID          string        `json:"id"`
	Type        OperationType `json:"type"`
	CreatedAt   time.Time     `json:"created_at"`
	LastAttempt time.Time     `json:"last_attempt,omitempty"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
}

// PendingQueue stores deferred operations in the kv store. Operations carry
// no payload: they replay against the current local state when they run, so
// a queued push always sends the freshest data.
type PendingQueue struct {
	store *kv.Store
}

// NewPendingQueue creates a queue over the given store.
func NewPendingQueue(store *kv.Store) *PendingQueue {
	return &PendingQueue{store: store}
}

// Enqueue adds an operation of the given type unless one is already queued.
// Queued pushes replay full collections, so duplicates add nothing.
func (q *PendingQueue) Enqueue(opType OperationType, now time.Time) (*PendingOperation, error) {
	ops, err := q.List()
	if err != nil {
		return nil, err
	}
	for i := range ops {
		if ops[i].Type == opType {
			return &ops[i], nil
		}
	}

	op := PendingOperation{
		ID:        uuid.New().String(),
		Type:      opType,
		CreatedAt: now,
	}
	if err := q.put(&op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Update persists changed retry bookkeeping for an operation.
func (q *PendingQueue) Update(op *PendingOperation) error {
	return q.put(op)
}

func (q *PendingQueue) put(op *PendingOperation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode pending operation: %w", err)
	}
	if err := q.store.Set([]byte(pendingPrefix+op.ID), raw); err != nil {
		return fmt.Errorf("failed to persist pending operation: %w", err)
	}
	return nil
}

// Remove deletes a completed operation.
func (q *PendingQueue) Remove(id string) error {
	return q.store.Delete([]byte(pendingPrefix + id))
}

// List returns all queued operations, oldest first. Entries that fail to
// decode are dropped from the store rather than wedging the queue.
func (q *PendingQueue) List() ([]PendingOperation, error) {
	keys, err := q.store.KeysWithPrefix([]byte(pendingPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}

	ops := make([]PendingOperation, 0, len(keys))
	for _, k := range keys {
		raw, err := q.store.Get(k)
		if err != nil {
			continue
		}
		var op PendingOperation
		if err := json.Unmarshal(raw, &op); err != nil {
			_ = q.store.Delete(k)
			continue
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].CreatedAt.Before(ops[j].CreatedAt) })
	return ops, nil
}

// Len returns the number of queued operations.
func (q *PendingQueue) Len() (int, error) {
	keys, err := q.store.KeysWithPrefix([]byte(pendingPrefix))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
