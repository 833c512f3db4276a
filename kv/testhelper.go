// ABOUTME: Test utilities for creating isolated kv stores
// ABOUTME: Uses temporary directories so parallel tests never share state

package kv

import (
	"testing"
)

// NewTestStore creates a store in a temporary directory, cleaned up when the
// test finishes. Quota limits default to unlimited; pass opts to override.
func NewTestStore(t *testing.T, opts ...Options) *Store {
	t.Helper()

	o := Options{}
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Dir = t.TempDir()

	store, err := Open(o)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close test store: %v", err)
		}
	})
	return store
}
