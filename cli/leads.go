// ABOUTME: Lead CLI commands
// ABOUTME: Human-friendly commands for managing the local lead collection

package cli

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

// AddLeadCommand adds a new business lead.
func AddLeadCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("add-lead", flag.ExitOnError)
	name := fs.String("name", "", "Business name (required)")
	address := fs.String("address", "", "Street address")
	phone := fs.String("phone", "", "Phone number")
	email := fs.String("email", "", "Email address")
	category := fs.String("category", "", "Business category")
	town := fs.String("town", "", "Town")
	province := fs.String("province", "", "Province")
	provider := fs.String("provider", "", "Current telecom provider")
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	business := &models.Business{
		ID:         uuid.New().String(),
		Name:       *name,
		Address:    *address,
		Phone:      *phone,
		Email:      *email,
		Category:   *category,
		Town:       *town,
		Province:   *province,
		Provider:   *provider,
		Status:     models.StatusActive,
		Source:     models.SourceManual,
		ImportedAt: time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if *lat != 0 || *lng != 0 {
		business.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}

	if err := db.UpsertBusiness(database, owner, business); err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	fmt.Printf("✓ Lead created: %s (ID: %s)\n", business.Name, business.ID)
	if business.Town != "" {
		fmt.Printf("  Town: %s\n", business.Town)
	}
	if business.Provider != "" {
		fmt.Printf("  Provider: %s\n", business.Provider)
	}
	return nil
}

// ListLeadsCommand lists leads with optional filters.
func ListLeadsCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("list-leads", flag.ExitOnError)
	town := fs.String("town", "", "Filter by town")
	provider := fs.String("provider", "", "Filter by provider")
	status := fs.String("status", "", "Filter by status")
	category := fs.String("category", "", "Filter by category")
	limit := fs.Int("limit", 50, "Maximum results")
	fs.Parse(args)

	if *status != "" && !models.ValidStatus(*status) {
		return fmt.Errorf("invalid status %q", *status)
	}

	leads, err := db.ListBusinesses(database, owner, db.BusinessFilter{
		Town:     *town,
		Provider: *provider,
		Status:   *status,
		Category: *category,
		Limit:    *limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	if len(leads) == 0 {
		fmt.Println("No leads found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOWN\tPROVIDER\tSTATUS\tPHONE\tID")
	fmt.Fprintln(w, "----\t----\t--------\t------\t-----\t--")
	for _, lead := range leads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.Name, dash(lead.Town), dash(lead.Provider), lead.Status, dash(lead.Phone), shortID(lead.ID))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d lead(s)\n", len(leads))
	return nil
}

// ShowLeadCommand prints everything known about one lead.
func ShowLeadCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("show-lead", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	lead, err := db.GetBusiness(database, owner, *id)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}
	if lead == nil {
		return fmt.Errorf("no lead with ID %s", *id)
	}

	fmt.Printf("%s\n", lead.Name)
	fmt.Printf("  ID: %s\n", lead.ID)
	fmt.Printf("  Status: %s\n", lead.Status)
	if lead.Address != "" {
		fmt.Printf("  Address: %s, %s (%s)\n", lead.Address, lead.Town, lead.Province)
	}
	if lead.Phone != "" {
		fmt.Printf("  Phone: %s", lead.Phone)
		if lead.PhoneTypeOverride != "" {
			fmt.Printf(" [%s]", lead.PhoneTypeOverride)
		}
		fmt.Println()
	}
	if lead.Provider != "" {
		fmt.Printf("  Provider: %s\n", lead.Provider)
	}
	if lead.Coordinates != nil {
		fmt.Printf("  Location: %.6f, %.6f\n", lead.Coordinates.Lat, lead.Coordinates.Lng)
	}
	if lead.Meta.InterestLevel != "" {
		fmt.Printf("  Interest: %s\n", lead.Meta.InterestLevel)
	}
	if lead.Meta.HasIssues {
		fmt.Printf("  Has open issues\n")
	}
	for _, note := range lead.RichNotes {
		fmt.Printf("  Note [%s] %s: %s\n", note.Category, note.CreatedAt.Local().Format("2006-01-02"), note.Content)
	}
	for _, note := range lead.Notes {
		fmt.Printf("  Note: %s\n", note)
	}
	return nil
}

// UpdateLeadCommand updates status, phone type, or metadata on a lead.
func UpdateLeadCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("update-lead", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	status := fs.String("status", "", "New status (active|contacted|converted|inactive)")
	phoneType := fs.String("phone-type", "", "Phone type override (mobile|landline)")
	interest := fs.String("interest", "", "Interest level")
	issues := fs.String("issues", "", "Mark issues (true|false)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	lead, err := db.GetBusiness(database, owner, *id)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}
	if lead == nil {
		return fmt.Errorf("no lead with ID %s", *id)
	}

	if *status != "" {
		if !models.ValidStatus(*status) {
			return fmt.Errorf("invalid status %q", *status)
		}
		lead.Status = *status
	}
	if *phoneType != "" {
		if *phoneType != models.PhoneTypeMobile && *phoneType != models.PhoneTypeLandline {
			return fmt.Errorf("invalid phone type %q", *phoneType)
		}
		lead.PhoneTypeOverride = *phoneType
	}
	if *interest != "" {
		lead.Meta.InterestLevel = *interest
	}
	if *issues != "" {
		lead.Meta.HasIssues = *issues == "true" || *issues == "1"
	}
	lead.UpdatedAt = time.Now().UTC()

	if err := db.UpsertBusiness(database, owner, lead); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	fmt.Printf("✓ Lead updated: %s\n", lead.Name)
	return nil
}

// AddNoteCommand appends a note to a lead.
func AddNoteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("add-note", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	content := fs.String("content", "", "Note content (required)")
	category := fs.String("category", "general", "Note category")
	fs.Parse(args)

	if *id == "" || *content == "" {
		return fmt.Errorf("--id and --content are required")
	}

	lead, err := db.GetBusiness(database, owner, *id)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}
	if lead == nil {
		return fmt.Errorf("no lead with ID %s", *id)
	}

	lead.RichNotes = append(lead.RichNotes, models.NewNote(*content, *category))
	lead.UpdatedAt = time.Now().UTC()

	if err := db.UpsertBusiness(database, owner, lead); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	fmt.Printf("✓ Note added to %s\n", lead.Name)
	return nil
}

// DeleteLeadCommand removes a lead.
func DeleteLeadCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("delete-lead", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	if err := db.DeleteBusiness(database, owner, *id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	fmt.Printf("✓ Lead %s deleted\n", *id)
	return nil
}

// ImportLeadsCommand loads a JSON array of businesses into the local store.
func ImportLeadsCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("import-leads", flag.ExitOnError)
	file := fs.String("file", "", "JSON file holding an array of businesses (required)")
	replace := fs.Bool("replace", false, "Replace the whole collection instead of merging")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *file, err)
	}

	var leads []models.Business
	if err := json.Unmarshal(raw, &leads); err != nil {
		return fmt.Errorf("failed to parse %s: %w", *file, err)
	}

	now := time.Now().UTC()
	for i := range leads {
		if leads[i].ID == "" {
			leads[i].ID = uuid.New().String()
		}
		if leads[i].Status == "" {
			leads[i].Status = models.StatusActive
		}
		if leads[i].Source == "" {
			leads[i].Source = models.SourceImport
		}
		if leads[i].ImportedAt.IsZero() {
			leads[i].ImportedAt = now
		}
	}

	if *replace {
		if err := db.ReplaceBusinesses(database, owner, leads); err != nil {
			return fmt.Errorf("failed to import leads: %w", err)
		}
	} else {
		for i := range leads {
			if err := db.UpsertBusiness(database, owner, &leads[i]); err != nil {
				return fmt.Errorf("failed to import lead %s: %w", leads[i].ID, err)
			}
		}
	}

	fmt.Printf("✓ Imported %d lead(s) from %s\n", len(leads), *file)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
