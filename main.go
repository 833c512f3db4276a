// ABOUTME: Entry point for the leadsync CLI and TUI
// ABOUTME: Routes subcommands for leads, routes, and sync against the local store

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/harperreed/leadsync/cli"
	"github.com/harperreed/leadsync/db"
	syncpkg "github.com/harperreed/leadsync/sync"
)

const version = "0.1.0"

func main() {
	// .env overrides are optional; absence is not an error
	_ = godotenv.Load()

	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/leadsync/leads.db)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	finalDBPath := getDatabasePath(*dbPath)
	database, err := db.OpenDatabase(finalDBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *initOnly {
		log.Printf("Database initialized at %s", finalDBPath)
		os.Exit(0)
	}

	owner, err := currentOwner()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "add-lead":
		runLead(cli.AddLeadCommand, database, owner, commandArgs)
	case "list-leads":
		runLead(cli.ListLeadsCommand, database, owner, commandArgs)
	case "show-lead":
		runLead(cli.ShowLeadCommand, database, owner, commandArgs)
	case "update-lead":
		runLead(cli.UpdateLeadCommand, database, owner, commandArgs)
	case "add-note":
		runLead(cli.AddNoteCommand, database, owner, commandArgs)
	case "delete-lead":
		runLead(cli.DeleteLeadCommand, database, owner, commandArgs)
	case "import-leads":
		runLead(cli.ImportLeadsCommand, database, owner, commandArgs)

	case "route":
		if len(commandArgs) == 0 {
			fmt.Println("Error: route requires a subcommand (add|remove|show|reorder|clear)")
			os.Exit(1)
		}
		switch commandArgs[0] {
		case "add":
			runLead(cli.AddToRouteCommand, database, owner, commandArgs[1:])
		case "remove":
			runLead(cli.RemoveFromRouteCommand, database, owner, commandArgs[1:])
		case "show":
			runLead(cli.ShowRouteCommand, database, owner, commandArgs[1:])
		case "reorder":
			runLead(cli.ReorderRouteCommand, database, owner, commandArgs[1:])
		case "clear":
			runLead(cli.ClearRouteCommand, database, owner, commandArgs[1:])
		default:
			fmt.Printf("Unknown route subcommand: %s\n", commandArgs[0])
			os.Exit(1)
		}

	case "sync":
		if len(commandArgs) == 0 {
			fmt.Println("Error: sync requires a subcommand (login|now|pull|retry|status|cache)")
			os.Exit(1)
		}
		switch commandArgs[0] {
		case "login":
			if err := cli.SyncLoginCommand(commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		case "now":
			if err := cli.SyncNowCommand(database, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		case "pull":
			if err := cli.SyncPullCommand(database, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		case "retry":
			if err := cli.SyncRetryCommand(database, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		case "status":
			if err := cli.SyncStatusCommand(database, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		case "cache":
			if err := cli.CacheInfoCommand(database, commandArgs[1:]); err != nil {
				log.Fatalf("Error: %v", err)
			}
		default:
			fmt.Printf("Unknown sync subcommand: %s\n", commandArgs[0])
			os.Exit(1)
		}

	case "tui":
		if err := cli.TUICommand(database, commandArgs); err != nil {
			log.Fatalf("TUI failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runLead(fn func(*sql.DB, string, []string) error, database *sql.DB, owner string, args []string) {
	if err := fn(database, owner, args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func currentOwner() (string, error) {
	cfg, err := syncpkg.LoadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Owner != "" {
		return cfg.Owner, nil
	}
	// Unconfigured sync still gets a working local tool.
	return "local", nil
}

func getDatabasePath(override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(xdg.DataHome, "leadsync", "leads.db")
}

func printUsage() {
	fmt.Println(`leadsync - lead management and route planning for field sales

Usage:
  leadsync [flags] <command> [args]

Lead commands:
  add-lead      Add a lead (--name, --town, --provider, ...)
  list-leads    List leads (--town, --provider, --status, --category, --limit)
  show-lead     Show one lead in full (--id)
  update-lead   Update status or metadata (--id, --status, --phone-type, ...)
  add-note      Append a note (--id, --content, --category)
  delete-lead   Delete a lead (--id)
  import-leads  Import a JSON file (--file, --replace)

Route commands:
  route add      Add a lead to the route (--id)
  route remove   Remove a lead from the route (--id)
  route show     Print the route in visit order
  route reorder  Rewrite the order (--ids a,b,c)
  route clear    Empty the route

Sync commands:
  sync login   Authenticate (--server, --username)
  sync now     Push local changes and pull remote ones (--offline to queue)
  sync pull    Pull remote changes only
  sync retry   Run queued operations whose backoff has elapsed
  sync status  Show connectivity, queue, and cache state
  sync cache   List cache entries

Other:
  tui        Interactive interface
  --version  Show version
  --init     Initialize the database and exit
  --db-path  Override the database location`)
}
