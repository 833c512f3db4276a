// ABOUTME: Tests for domain model helpers
// ABOUTME: Covers status validation, modification timestamps, and note creation
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusActive, StatusContacted, StatusConverted, StatusInactive} {
		assert.True(t, ValidStatus(s), "%s should be a valid status", s)
	}
	assert.False(t, ValidStatus(""), "empty status should be invalid")
	assert.False(t, ValidStatus("archived"), "unknown status should be invalid")
}

func TestBusinessModifiedAt(t *testing.T) {
	imported := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

	b := &Business{ImportedAt: imported}
	assert.Equal(t, imported, b.ModifiedAt(), "should fall back to ImportedAt when UpdatedAt unset")

	b.UpdatedAt = updated
	assert.Equal(t, updated, b.ModifiedAt(), "should prefer UpdatedAt when set")
}

func TestRouteStopModifiedAt(t *testing.T) {
	added := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &RouteStop{BusinessID: "b1", Order: 0, AddedAt: added}
	assert.Equal(t, added, r.ModifiedAt())

	updated := added.Add(48 * time.Hour)
	r.UpdatedAt = updated
	assert.Equal(t, updated, r.ModifiedAt())
}

func TestNewNote(t *testing.T) {
	n := NewNote("owner wants fiber quote", "followup")
	require.NotEmpty(t, n.ID, "note should get a ULID")
	assert.Len(t, n.ID, 26, "ULID string form is 26 chars")
	assert.Equal(t, "owner wants fiber quote", n.Content)
	assert.Equal(t, "followup", n.Category)
	assert.WithinDuration(t, time.Now(), n.CreatedAt, 2*time.Second)

	n2 := NewNote("second", "")
	assert.NotEqual(t, n.ID, n2.ID, "note IDs should be unique")
}
