// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation and initialization
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS businesses (
	owner TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	address TEXT,
	phone TEXT,
	email TEXT,
	website TEXT,
	category TEXT,
	town TEXT,
	province TEXT,
	provider TEXT,
	phone_type_override TEXT,
	lat REAL,
	lng REAL,
	status TEXT NOT NULL,
	notes TEXT,
	rich_notes TEXT,
	metadata TEXT,
	imported_at DATETIME NOT NULL,
	updated_at DATETIME,
	source TEXT NOT NULL,
	PRIMARY KEY (owner, id)
);

CREATE INDEX IF NOT EXISTS idx_businesses_provider ON businesses(owner, provider);
CREATE INDEX IF NOT EXISTS idx_businesses_town ON businesses(owner, town);
CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(owner, status);
CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(owner, category);

CREATE TABLE IF NOT EXISTS route_stops (
	owner TEXT NOT NULL,
	business_id TEXT NOT NULL,
	sort_order INTEGER NOT NULL,
	added_at DATETIME NOT NULL,
	updated_at DATETIME,
	PRIMARY KEY (owner, business_id)
);

CREATE INDEX IF NOT EXISTS idx_route_stops_order ON route_stops(owner, sort_order);
`

// InitSchema creates all tables and indexes if they don't exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
