// ABOUTME: Tests for sync view functionality
// ABOUTME: Verifies status rendering, view switching, and result formatting

package tui

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/leadsync/cache"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/kv"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

func setupTestDB(t *testing.T) *sql.DB {
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	if err := db.InitSchema(database); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func setupTestCoordinator(t *testing.T, database *sql.DB) *sync.Coordinator {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/api/businesses":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"businesses": []models.Business{}})
		case "/api/route":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"stops": []models.RouteStop{}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]int{"synced_count": 0})
		}
	}))
	t.Cleanup(hs.Close)

	logger := log.New(io.Discard, "", 0)
	cfg := &sync.Config{Server: hs.URL, Owner: "tester", Token: "tok", DeviceID: "dev"}
	client := sync.NewAPIClient(cfg)
	conn := sync.NewConnectivity(client.Health, time.Hour, logger)
	conn.SetForcedOffline(false)

	store := kv.NewTestStore(t)
	engine := sync.NewEngine(database, "tester", client, store, conn, sync.EngineOptions{
		BatchDelay: time.Millisecond,
	}, logger)
	cacheMgr := cache.New(store, cache.Options{SweepInterval: time.Hour}, logger)
	t.Cleanup(cacheMgr.Close)

	coordinator := sync.NewCoordinator(engine, cacheMgr, conn, "tester", logger)
	t.Cleanup(coordinator.Destroy)
	return coordinator
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func TestSyncViewRendering(t *testing.T) {
	database := setupTestDB(t)
	m := NewModel(database, "tester", setupTestCoordinator(t, database))
	m.viewMode = ViewSync

	output := m.renderSyncView()
	if output == "" {
		t.Fatal("Sync view should not be empty")
	}
	if !contains(output, "Sync Status") {
		t.Error("Sync view should contain title")
	}
	if !contains(output, "Online") {
		t.Error("Sync view should show the server as online")
	}
	if !contains(output, "never") {
		t.Error("Sync view should show that nothing has synced yet")
	}
}

func TestSyncViewOffline(t *testing.T) {
	database := setupTestDB(t)
	coordinator := setupTestCoordinator(t, database)
	coordinator.EnableOfflineMode(true)

	m := NewModel(database, "tester", coordinator)
	m.viewMode = ViewSync

	output := m.renderSyncView()
	if !contains(output, "Offline") {
		t.Error("Sync view should show the offline state")
	}
}

func TestLeadsViewRendering(t *testing.T) {
	database := setupTestDB(t)
	err := db.ReplaceBusinesses(database, "tester", []models.Business{
		{ID: "biz-1", Name: "Carnicería Hermanos Ruiz", Town: "Almansa", Provider: "movistar", Status: models.StatusActive},
	})
	if err != nil {
		t.Fatalf("Failed to seed businesses: %v", err)
	}

	m := NewModel(database, "tester", setupTestCoordinator(t, database))
	output := m.renderLeadsView()

	if !contains(output, "1 businesses") {
		t.Error("Leads view should show the business count")
	}
	if !contains(output, "Carnicería Hermanos Ruiz") {
		t.Error("Leads view should list the business name")
	}
}

func TestTabSwitchesView(t *testing.T) {
	database := setupTestDB(t)
	m := NewModel(database, "tester", setupTestCoordinator(t, database))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next := updated.(Model)
	if next.viewMode != ViewSync {
		t.Errorf("Tab should switch to the sync view, got mode %d", next.viewMode)
	}

	updated, _ = next.Update(tea.KeyMsg{Type: tea.KeyTab})
	if updated.(Model).viewMode != ViewLeads {
		t.Error("Tab should switch back to the leads view")
	}
}

func TestSyncCompleteReloadsLeads(t *testing.T) {
	database := setupTestDB(t)
	m := NewModel(database, "tester", setupTestCoordinator(t, database))

	err := db.ReplaceBusinesses(database, "tester", []models.Business{
		{ID: "biz-1", Name: "Panadería San José", Status: models.StatusActive},
	})
	if err != nil {
		t.Fatalf("Failed to seed businesses: %v", err)
	}

	updated, _ := m.Update(SyncCompleteMsg{Result: &sync.SyncResult{Success: true, SyncedCount: 1, Timestamp: time.Now()}})
	next := updated.(Model)

	if len(next.leadTable.Rows()) != 1 {
		t.Error("A completed sync should reload the lead table")
	}
	if len(next.syncMessages) != 1 {
		t.Error("A completed sync should append an activity message")
	}
}

func TestHumanizeLastSync(t *testing.T) {
	if got := humanizeLastSync(time.Time{}); got != "never" {
		t.Errorf("Zero time should read 'never', got %q", got)
	}
	if got := humanizeLastSync(time.Now().Add(-30 * time.Second)); got != "just now" {
		t.Errorf("Recent time should read 'just now', got %q", got)
	}
	if got := humanizeLastSync(time.Now().Add(-5 * time.Minute)); !contains(got, "minute") {
		t.Errorf("Minutes-old time should read in minutes, got %q", got)
	}
}

func TestDescribeSyncResult(t *testing.T) {
	ok := describeSyncResult(&sync.SyncResult{Success: true, SyncedCount: 42, Timestamp: time.Now()})
	if !contains(ok, "42") {
		t.Errorf("Success message should carry the count, got %q", ok)
	}

	failed := describeSyncResult(&sync.SyncResult{
		Success:     false,
		FailedCount: 7,
		Errors:      []sync.SyncError{{Type: sync.ErrorServer, Message: "server returned 500"}},
		Timestamp:   time.Now(),
	})
	if !contains(failed, "failed") || !contains(failed, "server returned 500") {
		t.Errorf("Failure message should carry the first error, got %q", failed)
	}
}
