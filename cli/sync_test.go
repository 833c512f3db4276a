package cli

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adrg/xdg"

	"github.com/harperreed/leadsync/kv"
	"github.com/harperreed/leadsync/sync"
)

func TestBuildSyncStackEnforcesStorageQuota(t *testing.T) {
	xdg.DataHome = t.TempDir()

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer hs.Close()

	cfg := &sync.Config{Server: hs.URL, Owner: testOwner, Token: "tok", DeviceID: "dev"}
	if err := sync.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	database := setupTestCLI(t)
	stack, err := buildSyncStack(database)
	if err != nil {
		t.Fatalf("buildSyncStack failed: %v", err)
	}
	defer stack.close()

	// The production store must carry real quotas so the cache's emergency
	// recovery path can actually trigger.
	oversized := make([]byte, kvMaxValueBytes+1)
	err = stack.store.Set([]byte("cache/businesses/"+testOwner), oversized)
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Errorf("Expected ErrQuotaExceeded for an oversized value, got %v", err)
	}

	if err := stack.store.Set([]byte("auth/token"), []byte("tok")); err != nil {
		t.Errorf("A small value should fit under the quota: %v", err)
	}
}
