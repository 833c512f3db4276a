// ABOUTME: Route CLI commands
// ABOUTME: Manages the ordered visit route over the local lead collection

package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/leadsync/db"
)

// AddToRouteCommand appends a lead to the end of the route.
func AddToRouteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("route-add", flag.ExitOnError)
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

	if err := db.AddRouteStop(database, owner, *id); err != nil {
		return fmt.Errorf("failed to add route stop: %w", err)
	}

	count, err := db.CountRouteStops(database, owner)
	if err != nil {
		return fmt.Errorf("failed to count route stops: %w", err)
	}
	fmt.Printf("✓ %s added to route (%d stop(s) total)\n", lead.Name, count)
	return nil
}

// RemoveFromRouteCommand removes a lead from the route and closes the gap.
func RemoveFromRouteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("route-remove", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	if err := db.RemoveRouteStop(database, owner, *id); err != nil {
		return fmt.Errorf("failed to remove route stop: %w", err)
	}
	fmt.Printf("✓ Lead %s removed from route\n", *id)
	return nil
}

// ShowRouteCommand prints the route in visit order.
func ShowRouteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("route-show", flag.ExitOnError)
	fs.Parse(args)

	stops, err := db.ListRouteStops(database, owner)
	if err != nil {
		return fmt.Errorf("failed to load route: %w", err)
	}
	if len(stops) == 0 {
		fmt.Println("Route is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tTOWN\tPHONE\tID")
	fmt.Fprintln(w, "-\t----\t----\t-----\t--")
	for _, stop := range stops {
		lead, err := db.GetBusiness(database, owner, stop.BusinessID)
		if err != nil {
			return fmt.Errorf("failed to load lead %s: %w", stop.BusinessID, err)
		}
		name, town, phone := "(missing)", "-", "-"
		if lead != nil {
			name, town, phone = lead.Name, dash(lead.Town), dash(lead.Phone)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", stop.Order+1, name, town, phone, shortID(stop.BusinessID))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d stop(s)\n", len(stops))
	return nil
}

// ReorderRouteCommand rewrites the route order from a comma-separated ID list.
func ReorderRouteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("route-reorder", flag.ExitOnError)
	ids := fs.String("ids", "", "Comma-separated lead IDs in the new order (required)")
	fs.Parse(args)

	if *ids == "" {
		return fmt.Errorf("--ids is required")
	}

	ordered := strings.Split(*ids, ",")
	for i := range ordered {
		ordered[i] = strings.TrimSpace(ordered[i])
	}

	if err := db.ReorderRoute(database, owner, ordered); err != nil {
		return fmt.Errorf("failed to reorder route: %w", err)
	}
	fmt.Printf("✓ Route reordered (%d stop(s))\n", len(ordered))
	return nil
}

// ClearRouteCommand empties the route.
func ClearRouteCommand(database *sql.DB, owner string, args []string) error {
	fs := flag.NewFlagSet("route-clear", flag.ExitOnError)
	fs.Parse(args)

	if err := db.ClearRoute(database, owner); err != nil {
		return fmt.Errorf("failed to clear route: %w", err)
	}
	fmt.Println("✓ Route cleared")
	return nil
}
