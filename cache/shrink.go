// ABOUTME: Field-subset shrinking for large business collections
// ABOUTME: Keeps map rendering viable when the full payload would blow the entry budget

package cache

import (
	"unicode/utf8"

	"github.com/harperreed/leadsync/models"
)

const (
	// reducedThreshold is the record count above which truncated field
	// subsets are cached instead of full records.
	reducedThreshold = 1000

	// minimalThreshold is the record count above which only the minimal
	// map-pin field subset is cached.
	minimalThreshold = 3000

	// shrinkCap bounds the record count when an entry is still oversized
	// after serialization.
	shrinkCap = 500

	// emergencyCap bounds the sample written after quota recovery.
	emergencyCap = 100
)

// minimalBusiness carries just enough to place a pin on the map and label it.
type minimalBusiness struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
	Provider    string              `json:"provider,omitempty"`
	Category    string              `json:"category,omitempty"`
	Town        string              `json:"town,omitempty"`
	Phone       string              `json:"phone,omitempty"`
}

// reducedBusiness adds the fields list views need on top of the minimal set.
type reducedBusiness struct {
	minimalBusiness
	Address  string `json:"address,omitempty"`
	Province string `json:"province,omitempty"`
	Status   string `json:"status,omitempty"`
	Email    string `json:"email,omitempty"`
}

// truncate cuts s to at most max bytes on a rune boundary, so accented
// business names stay valid UTF-8 after the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func toMinimal(b models.Business) minimalBusiness {
	return minimalBusiness{
		ID:          b.ID,
		Name:        truncate(b.Name, 100),
		Coordinates: b.Coordinates,
		Provider:    truncate(b.Provider, 50),
		Category:    truncate(b.Category, 50),
		Town:        truncate(b.Town, 50),
		Phone:       truncate(b.Phone, 20),
	}
}

// minimalBusinesses maps records to the minimal subset, keeping at most cap
// records when cap is positive.
func minimalBusinesses(businesses []models.Business, cap int) []minimalBusiness {
	n := len(businesses)
	if cap > 0 && n > cap {
		n = cap
	}
	out := make([]minimalBusiness, n)
	for i := 0; i < n; i++ {
		out[i] = toMinimal(businesses[i])
	}
	return out
}

// reducedBusinesses maps records to the truncated list-view subset.
func reducedBusinesses(businesses []models.Business) []reducedBusiness {
	out := make([]reducedBusiness, len(businesses))
	for i, b := range businesses {
		out[i] = reducedBusiness{
			minimalBusiness: toMinimal(b),
			Address:         truncate(b.Address, 150),
			Province:        truncate(b.Province, 50),
			Status:          b.Status,
			Email:           truncate(b.Email, 100),
		}
	}
	return out
}
