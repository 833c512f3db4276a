// ABOUTME: Tests for the badger-backed kv store
// ABOUTME: Covers CRUD, prefix operations, quota enforcement, and reset
package kv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	store := NewTestStore(t)

	_, err := store.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrKeyNotFound, "absent key should return ErrKeyNotFound")

	require.NoError(t, store.Set([]byte("k1"), []byte("v1")))
	got, err := store.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, store.Delete([]byte("k1")))
	_, err = store.Get([]byte("k1"))
	assert.ErrorIs(t, err, ErrKeyNotFound, "deleted key should be absent")

	assert.NoError(t, store.Delete([]byte("k1")), "deleting an absent key should not error")
}

func TestKeysWithPrefix(t *testing.T) {
	store := NewTestStore(t)

	require.NoError(t, store.Set([]byte("cache/businesses"), []byte("a")))
	require.NoError(t, store.Set([]byte("cache/routes"), []byte("b")))
	require.NoError(t, store.Set([]byte("auth/token"), []byte("c")))

	keys, err := store.KeysWithPrefix([]byte("cache/"))
	require.NoError(t, err)
	assert.Len(t, keys, 2, "only cache-prefixed keys should match")

	all, err := store.Keys()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteWithPrefix(t *testing.T) {
	store := NewTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set([]byte(fmt.Sprintf("sync/pending/%d", i)), []byte("op")))
	}
	require.NoError(t, store.Set([]byte("sync/last_sync"), []byte("ts")))

	n, err := store.DeleteWithPrefix([]byte("sync/pending/"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "should delete exactly the prefixed keys")

	_, err = store.Get([]byte("sync/last_sync"))
	assert.NoError(t, err, "keys outside the prefix must survive")
}

func TestMaxValueQuota(t *testing.T) {
	store := NewTestStore(t, Options{MaxValueBytes: 16})

	require.NoError(t, store.Set([]byte("small"), []byte("under the limit")))

	err := store.Set([]byte("big"), make([]byte, 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded, "oversized value should hit the quota")

	_, err = store.Get([]byte("big"))
	assert.ErrorIs(t, err, ErrKeyNotFound, "failed write must not leave a partial value")
}

func TestMaxTotalQuota(t *testing.T) {
	store := NewTestStore(t, Options{MaxTotalBytes: 256})

	require.NoError(t, store.Set([]byte("a"), make([]byte, 200)))

	err := store.Set([]byte("b"), make([]byte, 200))
	assert.ErrorIs(t, err, ErrQuotaExceeded, "aggregate quota should reject the second write")

	// After clearing, the same write fits.
	require.NoError(t, store.Delete([]byte("a")))
	assert.NoError(t, store.Set([]byte("b"), make([]byte, 200)))
}

func TestSizeWithPrefix(t *testing.T) {
	store := NewTestStore(t)

	require.NoError(t, store.Set([]byte("cache/x"), make([]byte, 100)))
	require.NoError(t, store.Set([]byte("other/y"), make([]byte, 1000)))

	size, err := store.SizeWithPrefix([]byte("cache/"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("cache/x")+100), size)
}

func TestReset(t *testing.T) {
	store := NewTestStore(t)

	require.NoError(t, store.Set([]byte("k"), []byte("v")))
	require.NoError(t, store.Reset())

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys, "reset should wipe everything")
}
