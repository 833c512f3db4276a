// ABOUTME: Business record database operations
// ABOUTME: Handles bulk replace, upserts, deletes, and indexed filter queries
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/models"
)

// BusinessFilter narrows ListBusinesses to the indexed fields the filter UI
// exposes. Zero values mean "no constraint".
type BusinessFilter struct {
	Provider string
	Town     string
	Status   string
	Category string
	Limit    int
}

// ReplaceBusinesses atomically swaps the owner's entire business collection.
// A concurrent reader sees either the old collection or the new one, never
// a partially cleared state.
func ReplaceBusinesses(db *sql.DB, owner string, businesses []models.Business) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM businesses WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to clear businesses: %w", err)
	}

	stmt, err := tx.Prepare(insertBusinessSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range businesses {
		if err := execInsertBusiness(stmt, owner, &businesses[i]); err != nil {
			return fmt.Errorf("failed to insert business %s: %w", businesses[i].ID, err)
		}
	}

	return tx.Commit()
}

// UpsertBusiness replaces the whole record for the given id (no field-level
// merge), creating it if absent.
func UpsertBusiness(db *sql.DB, owner string, b *models.Business) error {
	if b.ID == "" {
		return fmt.Errorf("business id is required")
	}
	notes, richNotes, meta, err := marshalBusinessJSON(b)
	if err != nil {
		return err
	}
	lat, lng := coordColumns(b.Coordinates)

	_, err = db.Exec(`
		INSERT OR REPLACE INTO businesses
		(owner, id, name, address, phone, email, website, category, town, province,
		 provider, phone_type_override, lat, lng, status, notes, rich_notes, metadata,
		 imported_at, updated_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, owner, b.ID, b.Name, b.Address, b.Phone, b.Email, b.Website, b.Category, b.Town,
		b.Province, b.Provider, b.PhoneTypeOverride, lat, lng, b.Status, notes, richNotes,
		meta, b.ImportedAt, nullTime(b.UpdatedAt), b.Source)
	return err
}

// GetBusiness returns the record for id, or nil when it does not exist.
func GetBusiness(db *sql.DB, owner, id string) (*models.Business, error) {
	row := db.QueryRow(selectBusinessSQL+` WHERE owner = ? AND id = ?`, owner, id)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBusinesses returns the owner's businesses matching the filter,
// ordered by name.
func ListBusinesses(db *sql.DB, owner string, filter BusinessFilter) ([]models.Business, error) {
	query := selectBusinessSQL + ` WHERE owner = ?`
	args := []interface{}{owner}

	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Town != "" {
		query += ` AND town = ?`
		args = append(args, filter.Town)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY name`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// CountBusinesses returns how many records the owner holds.
func CountBusinesses(db *sql.DB, owner string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM businesses WHERE owner = ?`, owner).Scan(&count)
	return count, err
}

// DeleteBusiness removes a single record by id.
func DeleteBusiness(db *sql.DB, owner, id string) error {
	_, err := db.Exec(`DELETE FROM businesses WHERE owner = ? AND id = ?`, owner, id)
	return err
}

// DeleteBusinesses removes a set of records in one transaction.
func DeleteBusinesses(db *sql.DB, owner string, ids []string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM businesses WHERE owner = ? AND id = ?`, owner, id); err != nil {
			return fmt.Errorf("failed to delete business %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteAllBusinesses wipes the owner's entire collection.
func DeleteAllBusinesses(db *sql.DB, owner string) error {
	_, err := db.Exec(`DELETE FROM businesses WHERE owner = ?`, owner)
	return err
}

const selectBusinessSQL = `
	SELECT id, name, address, phone, email, website, category, town, province,
	       provider, phone_type_override, lat, lng, status, notes, rich_notes,
	       metadata, imported_at, updated_at, source
	FROM businesses`

const insertBusinessSQL = `
	INSERT INTO businesses
	(owner, id, name, address, phone, email, website, category, town, province,
	 provider, phone_type_override, lat, lng, status, notes, rich_notes, metadata,
	 imported_at, updated_at, source)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func execInsertBusiness(stmt *sql.Stmt, owner string, b *models.Business) error {
	notes, richNotes, meta, err := marshalBusinessJSON(b)
	if err != nil {
		return err
	}
	lat, lng := coordColumns(b.Coordinates)
	_, err = stmt.Exec(owner, b.ID, b.Name, b.Address, b.Phone, b.Email, b.Website,
		b.Category, b.Town, b.Province, b.Provider, b.PhoneTypeOverride, lat, lng,
		b.Status, notes, richNotes, meta, b.ImportedAt, nullTime(b.UpdatedAt), b.Source)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBusiness(row rowScanner) (*models.Business, error) {
	b := &models.Business{}
	var (
		lat, lng                sql.NullFloat64
		notes, richNotes, meta  sql.NullString
		updatedAt               sql.NullTime
	)

	err := row.Scan(
		&b.ID, &b.Name, &b.Address, &b.Phone, &b.Email, &b.Website, &b.Category,
		&b.Town, &b.Province, &b.Provider, &b.PhoneTypeOverride, &lat, &lng,
		&b.Status, &notes, &richNotes, &meta, &b.ImportedAt, &updatedAt, &b.Source,
	)
	if err != nil {
		return nil, err
	}

	// Coordinates are stored both-or-neither
	if lat.Valid && lng.Valid {
		b.Coordinates = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if updatedAt.Valid {
		b.UpdatedAt = updatedAt.Time
	}
	if notes.Valid && notes.String != "" {
		if err := json.Unmarshal([]byte(notes.String), &b.Notes); err != nil {
			return nil, fmt.Errorf("failed to decode notes for %s: %w", b.ID, err)
		}
	}
	if richNotes.Valid && richNotes.String != "" {
		if err := json.Unmarshal([]byte(richNotes.String), &b.RichNotes); err != nil {
			return nil, fmt.Errorf("failed to decode rich notes for %s: %w", b.ID, err)
		}
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &b.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func marshalBusinessJSON(b *models.Business) (notes, richNotes, meta sql.NullString, err error) {
	if len(b.Notes) > 0 {
		data, e := json.Marshal(b.Notes)
		if e != nil {
			return notes, richNotes, meta, fmt.Errorf("failed to encode notes: %w", e)
		}
		notes = sql.NullString{String: string(data), Valid: true}
	}
	if len(b.RichNotes) > 0 {
		data, e := json.Marshal(b.RichNotes)
		if e != nil {
			return notes, richNotes, meta, fmt.Errorf("failed to encode rich notes: %w", e)
		}
		richNotes = sql.NullString{String: string(data), Valid: true}
	}
	data, e := json.Marshal(b.Meta)
	if e != nil {
		return notes, richNotes, meta, fmt.Errorf("failed to encode metadata: %w", e)
	}
	meta = sql.NullString{String: string(data), Valid: true}
	return notes, richNotes, meta, nil
}

func coordColumns(c *models.Coordinates) (lat, lng sql.NullFloat64) {
	if c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}
	return lat, lng
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
