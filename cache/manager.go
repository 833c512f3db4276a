// ABOUTME: TTL-bound response cache layered over the durable kv store
// ABOUTME: Handles size-aware writes, quota recovery, invalidation, and periodic sweeps

package cache

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/leadsync/kv"
	"github.com/harperreed/leadsync/models"
)

// Category identifies a cached collection. TTLs are chosen so that
// frequently-admin-mutated collections go stale fastest and mostly-static
// reference data survives longest.
type Category string

const (
	CategoryBusinesses Category = "businesses"
	CategoryRoutes     Category = "routes"
	CategoryDatasets   Category = "datasets"
	CategoryUsers      Category = "users"
)

// TTL returns the time-to-live for entries of this category.
func (c Category) TTL() time.Duration {
	switch c {
	case CategoryBusinesses:
		return 5 * time.Minute
	case CategoryRoutes:
		return 10 * time.Minute
	case CategoryDatasets:
		return 15 * time.Minute
	case CategoryUsers:
		return 2 * time.Minute
	}
	return 5 * time.Minute
}

// relatedCategories maps a mutated category to the categories whose derived
// data it staleness-poisons (dataset business counts, route business refs).
var relatedCategories = map[Category][]Category{
	CategoryBusinesses: {CategoryDatasets},
	CategoryRoutes:     {CategoryBusinesses},
	CategoryUsers:      {CategoryDatasets},
}

// entryVersion tags the on-disk envelope format. Entries written by an
// older format are treated as misses.
const entryVersion = "1"

const (
	keyPrefix  = "cache/"
	authPrefix = "auth/"
)

// envelope is the persisted wrapper around a cached payload.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	ExpiresAt time.Time       `json:"expires_at"`
	Version   string          `json:"version"`
}

// WriteOutcome is the typed result of a cache write. Quota pressure is an
// expected condition, so the write path reports what happened instead of
// returning an error.
type WriteOutcome int

const (
	// WriteStored means the payload was cached as-is.
	WriteStored WriteOutcome = iota
	// WriteStoredReduced means a truncated field subset was cached.
	WriteStoredReduced
	// WriteStoredMinimal means only the minimal field subset was cached.
	WriteStoredMinimal
	// WriteSkipped means the payload was too large to cache and was not stored.
	WriteSkipped
	// WriteDropped means quota recovery failed and caching is off for the session.
	WriteDropped
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteStored:
		return "stored"
	case WriteStoredReduced:
		return "stored-reduced"
	case WriteStoredMinimal:
		return "stored-minimal"
	case WriteSkipped:
		return "skipped"
	case WriteDropped:
		return "dropped"
	}
	return "unknown"
}

// Options tunes the manager. Zero values get defaults.
type Options struct {
	// SweepInterval is how often expired entries are collected (default 5m).
	SweepInterval time.Duration

	// SoftSizeLimit is the aggregate cache size above which the sweep evicts
	// the oldest half of entries (default 8MB).
	SoftSizeLimit int64

	// HardEntryLimit triggers aggressive re-shrinking of a single serialized
	// entry (default 3MB).
	HardEntryLimit int64

	// RetryEntryLimit is the ceiling after aggressive shrinking; an entry
	// still above it is abandoned (default 2MB).
	RetryEntryLimit int64

	// EmergencyEntryLimit caps the ultra-minimal write attempted after a
	// quota failure (default 500KB).
	EmergencyEntryLimit int64

	// Now is the clock; tests substitute a fake one. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.SweepInterval == 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.SoftSizeLimit == 0 {
		o.SoftSizeLimit = 8 << 20
	}
	if o.HardEntryLimit == 0 {
		o.HardEntryLimit = 3 << 20
	}
	if o.RetryEntryLimit == 0 {
		o.RetryEntryLimit = 2 << 20
	}
	if o.EmergencyEntryLimit == 0 {
		o.EmergencyEntryLimit = 500 << 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Manager is the cache service. Construct with New and tear down with Close;
// there is no package-level instance.
type Manager struct {
	store  *kv.Store
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	disabled bool // set after quota recovery fails; writes become no-ops

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a manager over the given store and starts the sweep loop.
// If logger is nil, log.Default() is used.
func New(store *kv.Store, opts Options, logger *log.Logger) *Manager {
	opts.applyDefaults()
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		store:  store,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep. It does not close the underlying store.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func cacheKey(category Category, scope string) []byte {
	if scope == "" {
		return []byte(keyPrefix + string(category))
	}
	return []byte(keyPrefix + string(category) + "/" + scope)
}

// Set caches data under the category, namespaced by scope so entries never
// leak across identities sharing a machine. It never returns an error:
// quota pressure degrades the write and, at worst, drops it.
func (m *Manager) Set(category Category, data interface{}, scope string) WriteOutcome {
	m.mu.Lock()
	if m.disabled {
		m.mu.Unlock()
		return WriteDropped
	}
	m.mu.Unlock()

	outcome := WriteStored
	payload := data

	// Tier 1: pre-shrink large business collections before serialization.
	if businesses, ok := asBusinessSlice(category, data); ok {
		switch {
		case len(businesses) > minimalThreshold:
			payload = minimalBusinesses(businesses, 0)
			outcome = WriteStoredMinimal
		case len(businesses) > reducedThreshold:
			payload = reducedBusinesses(businesses)
			outcome = WriteStoredReduced
		}
	}

	now := m.opts.Now()
	raw, err := m.seal(payload, category, now)
	if err != nil {
		m.logger.Printf("[cache] failed to encode %s entry: %v", category, err)
		return WriteSkipped
	}

	// Tier 2: measure after serialization and re-shrink aggressively.
	if int64(len(raw)) > m.opts.HardEntryLimit {
		if businesses, ok := asBusinessSlice(category, data); ok {
			payload = minimalBusinesses(businesses, shrinkCap)
			outcome = WriteStoredMinimal
			raw, err = m.seal(payload, category, now)
			if err != nil {
				m.logger.Printf("[cache] failed to encode shrunk %s entry: %v", category, err)
				return WriteSkipped
			}
		}
		if int64(len(raw)) > m.opts.RetryEntryLimit {
			m.logger.Printf("[cache] %s entry still %d bytes after shrinking, not caching", category, len(raw))
			return WriteSkipped
		}
	}

	err = m.store.Set(cacheKey(category, scope), raw)
	if err == nil {
		return outcome
	}
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		m.logger.Printf("[cache] failed to write %s entry: %v", category, err)
		return WriteSkipped
	}

	// Tier 3: quota exhausted. Recovery is destructive by design: the cache
	// is disposable, auth tokens are not.
	return m.recoverFromQuota(category, data, scope)
}

// recoverFromQuota clears the cache namespace and all non-essential keys,
// then attempts one ultra-minimal write. If that also fails the cache goes
// silent for the rest of the session rather than retry-looping.
func (m *Manager) recoverFromQuota(category Category, data interface{}, scope string) WriteOutcome {
	m.logger.Printf("[cache] storage quota exceeded, clearing cache namespace")

	if _, err := m.store.DeleteWithPrefix([]byte(keyPrefix)); err != nil {
		m.logger.Printf("[cache] emergency clear failed: %v", err)
	}

	keys, err := m.store.Keys()
	if err == nil {
		for _, k := range keys {
			if strings.HasPrefix(string(k), authPrefix) {
				continue
			}
			if err := m.store.Delete(k); err != nil {
				m.logger.Printf("[cache] failed to clear key %s: %v", k, err)
			}
		}
	}

	businesses, ok := asBusinessSlice(category, data)
	if !ok {
		// Nothing sensible to sample down; give up on this write.
		return WriteSkipped
	}

	sample := minimalBusinesses(businesses, emergencyCap)
	raw, err := m.seal(sample, category, m.opts.Now())
	if err != nil || int64(len(raw)) > m.opts.EmergencyEntryLimit {
		m.giveUp()
		return WriteDropped
	}
	if err := m.store.Set(cacheKey(category, scope), raw); err != nil {
		m.giveUp()
		return WriteDropped
	}
	m.logger.Printf("[cache] stored emergency %d-record sample for %s", len(sample), category)
	return WriteStoredMinimal
}

func (m *Manager) giveUp() {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
	m.logger.Printf("[cache] quota recovery failed, caching disabled for this session")
}

func (m *Manager) seal(payload interface{}, category Category, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Data:      data,
		Timestamp: now,
		ExpiresAt: now.Add(category.TTL()),
		Version:   entryVersion,
	})
}

// Get loads a cached entry into out. It returns false (a miss) when the key
// is absent, the version tag mismatches, or the entry has expired; stale and
// malformed entries are lazily deleted. A miss never carries an error:
// callers go fetch from source.
func (m *Manager) Get(category Category, scope string, out interface{}) bool {
	key := cacheKey(category, scope)
	raw, err := m.store.Get(key)
	if err != nil {
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		_ = m.store.Delete(key)
		return false
	}
	if env.Version != entryVersion || m.opts.Now().After(env.ExpiresAt) {
		_ = m.store.Delete(key)
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		_ = m.store.Delete(key)
		return false
	}
	return true
}

// Has reports whether a live entry exists without decoding its payload.
func (m *Manager) Has(category Category, scope string) bool {
	var ignored json.RawMessage
	return m.Get(category, scope, &ignored)
}

// Invalidate removes the entry for the category and scope.
func (m *Manager) Invalidate(category Category, scope string) {
	if err := m.store.Delete(cacheKey(category, scope)); err != nil {
		m.logger.Printf("[cache] failed to invalidate %s: %v", category, err)
	}
}

// InvalidateRelated invalidates the category plus every category whose
// derived data depends on it.
func (m *Manager) InvalidateRelated(category Category, scope string) {
	m.Invalidate(category, scope)
	for _, related := range relatedCategories[category] {
		m.Invalidate(related, scope)
	}
}

// EntryInfo describes one cached entry for debug introspection.
type EntryInfo struct {
	Key       string
	Bytes     int
	Timestamp time.Time
	ExpiresAt time.Time
	Expired   bool
}

// Stats summarizes the cache for debug introspection.
type Stats struct {
	Entries    int
	TotalBytes int64
	Disabled   bool
}

// GetInfo returns a description of every cache entry, oldest first.
func (m *Manager) GetInfo() []EntryInfo {
	keys, err := m.store.KeysWithPrefix([]byte(keyPrefix))
	if err != nil {
		return nil
	}

	now := m.opts.Now()
	var infos []EntryInfo
	for _, k := range keys {
		raw, err := m.store.Get(k)
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		infos = append(infos, EntryInfo{
			Key:       string(k),
			Bytes:     len(raw),
			Timestamp: env.Timestamp,
			ExpiresAt: env.ExpiresAt,
			Expired:   now.After(env.ExpiresAt),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.Before(infos[j].Timestamp) })
	return infos
}

// GetStats returns aggregate cache statistics.
func (m *Manager) GetStats() Stats {
	size, err := m.store.SizeWithPrefix([]byte(keyPrefix))
	if err != nil {
		size = 0
	}
	keys, err := m.store.KeysWithPrefix([]byte(keyPrefix))
	if err != nil {
		keys = nil
	}
	m.mu.Lock()
	disabled := m.disabled
	m.mu.Unlock()
	return Stats{Entries: len(keys), TotalBytes: size, Disabled: disabled}
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep deletes expired entries and, if the cache is still over the soft
// size ceiling, evicts the oldest half of what remains.
func (m *Manager) Sweep() {
	infos := m.GetInfo()
	removed := 0
	for _, info := range infos {
		if info.Expired {
			if err := m.store.Delete([]byte(info.Key)); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		m.logger.Printf("[cache] sweep removed %d expired entries", removed)
	}

	size, err := m.store.SizeWithPrefix([]byte(keyPrefix))
	if err != nil || size <= m.opts.SoftSizeLimit {
		return
	}

	live := m.GetInfo()
	evict := len(live) / 2
	for i := 0; i < evict; i++ {
		_ = m.store.Delete([]byte(live[i].Key))
	}
	m.logger.Printf("[cache] evicted oldest %d entries (%d bytes over soft limit)", evict, size-m.opts.SoftSizeLimit)
}

func asBusinessSlice(category Category, data interface{}) ([]models.Business, bool) {
	if category != CategoryBusinesses {
		return nil, false
	}
	businesses, ok := data.([]models.Business)
	return businesses, ok
}
