package cli

import (
	"database/sql"
	"testing"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

func seedRouteLeads(t *testing.T, database *sql.DB) {
	t.Helper()
	for _, id := range []string{"biz-1", "biz-2", "biz-3"} {
		lead := &models.Business{ID: id, Name: "Lead " + id, Status: models.StatusActive}
		if err := db.UpsertBusiness(database, testOwner, lead); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAddToRouteCommand(t *testing.T) {
	database := setupTestCLI(t)
	seedRouteLeads(t, database)

	if err := AddToRouteCommand(database, testOwner, []string{"--id", "biz-1"}); err != nil {
		t.Fatalf("AddToRouteCommand failed: %v", err)
	}
	if err := AddToRouteCommand(database, testOwner, []string{"--id", "biz-2"}); err != nil {
		t.Fatalf("AddToRouteCommand failed: %v", err)
	}

	stops, err := db.ListRouteStops(database, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 2 {
		t.Fatalf("Expected 2 stops, got %d", len(stops))
	}
	if stops[0].BusinessID != "biz-1" || stops[1].BusinessID != "biz-2" {
		t.Error("Stops should keep insertion order")
	}
}

func TestAddToRouteCommandUnknownLead(t *testing.T) {
	database := setupTestCLI(t)

	if err := AddToRouteCommand(database, testOwner, []string{"--id", "nope"}); err == nil {
		t.Error("Adding an unknown lead to the route should fail")
	}
}

func TestRemoveFromRouteCommand(t *testing.T) {
	database := setupTestCLI(t)
	seedRouteLeads(t, database)

	for _, id := range []string{"biz-1", "biz-2", "biz-3"} {
		if err := AddToRouteCommand(database, testOwner, []string{"--id", id}); err != nil {
			t.Fatal(err)
		}
	}

	if err := RemoveFromRouteCommand(database, testOwner, []string{"--id", "biz-2"}); err != nil {
		t.Fatalf("RemoveFromRouteCommand failed: %v", err)
	}

	stops, err := db.ListRouteStops(database, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 2 {
		t.Fatalf("Expected 2 stops, got %d", len(stops))
	}
	if stops[1].BusinessID != "biz-3" || stops[1].Order != 1 {
		t.Error("Removal should close the order gap")
	}
}

func TestReorderRouteCommand(t *testing.T) {
	database := setupTestCLI(t)
	seedRouteLeads(t, database)

	for _, id := range []string{"biz-1", "biz-2", "biz-3"} {
		if err := AddToRouteCommand(database, testOwner, []string{"--id", id}); err != nil {
			t.Fatal(err)
		}
	}

	if err := ReorderRouteCommand(database, testOwner, []string{"--ids", "biz-3, biz-1, biz-2"}); err != nil {
		t.Fatalf("ReorderRouteCommand failed: %v", err)
	}

	stops, err := db.ListRouteStops(database, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if stops[0].BusinessID != "biz-3" {
		t.Errorf("Expected biz-3 first, got %s", stops[0].BusinessID)
	}
}

func TestClearRouteCommand(t *testing.T) {
	database := setupTestCLI(t)
	seedRouteLeads(t, database)

	if err := AddToRouteCommand(database, testOwner, []string{"--id", "biz-1"}); err != nil {
		t.Fatal(err)
	}
	if err := ClearRouteCommand(database, testOwner, nil); err != nil {
		t.Fatalf("ClearRouteCommand failed: %v", err)
	}

	count, err := db.CountRouteStops(database, testOwner)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Route should be empty, has %d stops", count)
	}
}

func TestShowRouteCommandRuns(t *testing.T) {
	database := setupTestCLI(t)

	if err := ShowRouteCommand(database, testOwner, nil); err != nil {
		t.Errorf("ShowRouteCommand failed: %v", err)
	}
}
