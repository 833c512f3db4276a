// ABOUTME: Durable key/value store backed by BadgerDB
// ABOUTME: Enforces per-value and aggregate size quotas surfaced as ErrQuotaExceeded

package kv

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

var (
	// ErrKeyNotFound is returned by Get when the key is absent.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrQuotaExceeded is returned by Set when a write would exceed the
	// store's configured size limits. It is an expected failure mode, not
	// an internal fault; callers are expected to shrink or skip the write.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")
)

// Options configures a Store.
type Options struct {
	// Dir is the directory holding the badger database.
	Dir string

	// MaxValueBytes caps the size of a single value. Zero means no cap.
	MaxValueBytes int64

	// MaxTotalBytes caps the aggregate size of all keys and values.
	// Zero means no cap.
	MaxTotalBytes int64
}

// Store wraps BadgerDB behind a small namespaced key/value surface.
// All methods are safe for concurrent use.
type Store struct {
	db   *badger.DB
	opts Options
	mu   sync.RWMutex
}

// Open opens (creating if needed) a store at opts.Dir.
func Open(opts Options) (*Store, error) {
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create kv dir: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, opts: opts}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get retrieves a value by key.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return result, err
}

// Set stores a value, enforcing the configured quotas first.
func (s *Store) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxValueBytes > 0 && int64(len(value)) > s.opts.MaxValueBytes {
		return fmt.Errorf("%w: value is %d bytes, limit %d", ErrQuotaExceeded, len(value), s.opts.MaxValueBytes)
	}
	if s.opts.MaxTotalBytes > 0 {
		used, err := s.sizeLocked()
		if err != nil {
			return err
		}
		if used+int64(len(key)+len(value)) > s.opts.MaxTotalBytes {
			return fmt.Errorf("%w: store holds %d bytes, limit %d", ErrQuotaExceeded, used, s.opts.MaxTotalBytes)
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Keys returns all keys in the store.
func (s *Store) Keys() ([][]byte, error) {
	return s.KeysWithPrefix(nil)
}

// KeysWithPrefix returns all keys starting with the given prefix.
func (s *Store) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// DeleteWithPrefix removes every key starting with the given prefix and
// returns how many were deleted.
func (s *Store) DeleteWithPrefix(prefix []byte) (int, error) {
	keys, err := s.KeysWithPrefix(prefix)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(k)
		}); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// Size returns the aggregate byte size of all keys and values.
func (s *Store) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizeLocked()
}

// SizeWithPrefix returns the aggregate byte size of keys under a prefix.
func (s *Store) SizeWithPrefix(prefix []byte) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizePrefixLocked(prefix)
}

func (s *Store) sizeLocked() (int64, error) {
	return s.sizePrefixLocked(nil)
}

func (s *Store) sizePrefixLocked(prefix []byte) (int64, error) {
	var total int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			total += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	return total, err
}

// Reset wipes all data from the store (use with caution!)
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.DropAll()
}
