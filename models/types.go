// ABOUTME: Data models for lead-management entities
// ABOUTME: Defines Business, RouteStop, Note, and Metadata structs
package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Business is a prospect or customer record worked by field sales.
// IDs are externally assigned (scraper source id or generated on import)
// and stable across syncs.
type Business struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Address           string       `json:"address,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	Email             string       `json:"email,omitempty"`
	Website           string       `json:"website,omitempty"`
	Category          string       `json:"category,omitempty"`
	Town              string       `json:"town,omitempty"`
	Province          string       `json:"province,omitempty"`
	Provider          string       `json:"provider,omitempty"`
	PhoneTypeOverride string       `json:"phone_type_override,omitempty"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
	Status            string       `json:"status"`
	Notes             []string     `json:"notes,omitempty"`
	RichNotes         []Note       `json:"rich_notes,omitempty"`
	Meta              Metadata     `json:"metadata,omitempty"`
	ImportedAt        time.Time    `json:"imported_at"`
	UpdatedAt         time.Time    `json:"updated_at,omitempty"`
	Source            string       `json:"source"`
}

// Coordinates is a lat/lng pair. A business either has both or neither,
// never one of the two; a nil *Coordinates means "not geocoded".
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Note is a categorized annotation attached to a business.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Metadata holds the known optional workflow fields plus an escape hatch
// for keys the importer did not anticipate.
type Metadata struct {
	InterestLevel     string            `json:"interest_level,omitempty"`
	HasIssues         bool              `json:"has_issues,omitempty"`
	ContactPermission bool              `json:"contact_permission,omitempty"`
	ProviderSince     string            `json:"provider_since,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// RouteStop is an ordered assignment of a business to the visit route.
// It references a business, it never owns one.
type RouteStop struct {
	BusinessID string    `json:"business_id"`
	Order      int       `json:"order"`
	AddedAt    time.Time `json:"added_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Business status constants.
const (
	StatusActive    = "active"
	StatusContacted = "contacted"
	StatusConverted = "converted"
	StatusInactive  = "inactive"
)

// Record source constants.
const (
	SourceManual  = "manual"
	SourceScraped = "scraped"
	SourceAPI     = "api"
	SourceImport  = "import"
)

// Phone type override constants.
const (
	PhoneTypeMobile   = "mobile"
	PhoneTypeLandline = "landline"
)

// ValidStatus reports whether s is one of the recognized workflow states.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusContacted, StatusConverted, StatusInactive:
		return true
	}
	return false
}

// ModifiedAt returns the best-known modification time for conflict gating:
// UpdatedAt when the server set one, otherwise the import time.
func (b *Business) ModifiedAt() time.Time {
	if !b.UpdatedAt.IsZero() {
		return b.UpdatedAt
	}
	return b.ImportedAt
}

// ModifiedAt returns the best-known modification time for conflict gating.
func (r *RouteStop) ModifiedAt() time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.AddedAt
}

// NewNote creates a note with a fresh ULID and the given content.
func NewNote(content, category string) Note {
	return Note{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Content:   content,
		Category:  category,
		CreatedAt: time.Now(),
	}
}
