// ABOUTME: Route stop database operations
// ABOUTME: Handles ordered visit sequences with whole-set atomic rewrites
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/models"
)

// ReplaceRouteStops atomically swaps the owner's entire route. The set is
// rewritten delete-all-then-insert inside one transaction so a concurrent
// reader never observes a partially cleared route.
func ReplaceRouteStops(db *sql.DB, owner string, stops []models.RouteStop) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin route replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM route_stops WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to clear route: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO route_stops (owner, business_id, sort_order, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare route insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range stops {
		if _, err := stmt.Exec(owner, s.BusinessID, s.Order, s.AddedAt, nullTime(s.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to insert route stop %s: %w", s.BusinessID, err)
		}
	}

	return tx.Commit()
}

// ListRouteStops returns the owner's route in traversal order.
func ListRouteStops(db *sql.DB, owner string) ([]models.RouteStop, error) {
	rows, err := db.Query(`
		SELECT business_id, sort_order, added_at, updated_at
		FROM route_stops WHERE owner = ? ORDER BY sort_order
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []models.RouteStop
	for rows.Next() {
		var s models.RouteStop
		var updatedAt sql.NullTime
		if err := rows.Scan(&s.BusinessID, &s.Order, &s.AddedAt, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			s.UpdatedAt = updatedAt.Time
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// CountRouteStops returns the number of stops on the owner's route.
func CountRouteStops(db *sql.DB, owner string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM route_stops WHERE owner = ?`, owner).Scan(&count)
	return count, err
}

// AddRouteStop appends a business to the end of the route. Adding a business
// already on the route is a no-op.
func AddRouteStop(db *sql.DB, owner, businessID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM route_stops WHERE owner = ? AND business_id = ?
	`, owner, businessID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return tx.Commit()
	}

	var next int
	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(sort_order) + 1, 0) FROM route_stops WHERE owner = ?
	`, owner).Scan(&next); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO route_stops (owner, business_id, sort_order, added_at)
		VALUES (?, ?, ?, ?)
	`, owner, businessID, next, time.Now()); err != nil {
		return fmt.Errorf("failed to add route stop: %w", err)
	}
	return tx.Commit()
}

// RemoveRouteStop removes a business from the route and closes the gap so
// order values stay contiguous.
func RemoveRouteStop(db *sql.DB, owner, businessID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var removed sql.NullInt64
	if err := tx.QueryRow(`
		SELECT sort_order FROM route_stops WHERE owner = ? AND business_id = ?
	`, owner, businessID).Scan(&removed); err != nil {
		if err == sql.ErrNoRows {
			return tx.Commit()
		}
		return err
	}

	if _, err := tx.Exec(`
		DELETE FROM route_stops WHERE owner = ? AND business_id = ?
	`, owner, businessID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE route_stops SET sort_order = sort_order - 1
		WHERE owner = ? AND sort_order > ?
	`, owner, removed.Int64); err != nil {
		return fmt.Errorf("failed to compact route order: %w", err)
	}
	return tx.Commit()
}

// ClearRoute removes every stop from the owner's route.
func ClearRoute(db *sql.DB, owner string) error {
	_, err := db.Exec(`DELETE FROM route_stops WHERE owner = ?`, owner)
	return err
}

// ReorderRoute rewrites the route in the given business order, preserving
// each stop's original added_at.
func ReorderRoute(db *sql.DB, owner string, businessIDs []string) error {
	existing, err := ListRouteStops(db, owner)
	if err != nil {
		return err
	}
	added := make(map[string]time.Time, len(existing))
	for _, s := range existing {
		added[s.BusinessID] = s.AddedAt
	}

	now := time.Now()
	stops := make([]models.RouteStop, 0, len(businessIDs))
	for i, id := range businessIDs {
		addedAt, ok := added[id]
		if !ok {
			addedAt = now
		}
		stops = append(stops, models.RouteStop{
			BusinessID: id,
			Order:      i,
			AddedAt:    addedAt,
			UpdatedAt:  now,
		})
	}
	return ReplaceRouteStops(db, owner, stops)
}
