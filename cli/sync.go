// ABOUTME: Sync CLI commands
// ABOUTME: Login, manual sync passes, retry, and status against the sync server

package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/harperreed/leadsync/cache"
	"github.com/harperreed/leadsync/kv"
	"github.com/harperreed/leadsync/sync"
)

// SyncLoginCommand exchanges credentials for a token and stores the config.
func SyncLoginCommand(args []string) error {
	fs := flag.NewFlagSet("sync-login", flag.ExitOnError)
	server := fs.String("server", "", "Sync server URL (required)")
	username := fs.String("username", "", "Username (required)")
	fs.Parse(args)

	if *server == "" || *username == "" {
		return fmt.Errorf("--server and --username are required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	cfg, err := sync.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Server = *server
	if cfg.DeviceID == "" {
		cfg.DeviceID = sync.GenerateDeviceID()
	}

	client := sync.NewAPIClient(cfg)
	resp, err := client.Login(context.Background(), *username, string(password))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cfg.Token = resp.Token
	cfg.Owner = resp.Owner
	if err := sync.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("✓ Logged in as %s (device %s)\n", cfg.Owner, shortID(cfg.DeviceID))
	return nil
}

const (
	// kvMaxValueBytes and kvMaxTotalBytes bound the local kv store the way a
	// browser storage quota would. A single value may exceed the cache's own
	// 3MB entry ceiling slightly (envelope overhead), and the aggregate cap
	// leaves room for sync bookkeeping alongside the cache's 8MB soft limit.
	kvMaxValueBytes = 4 << 20
	kvMaxTotalBytes = 32 << 20
)

// syncStack bundles the wired sync components for one CLI invocation.
type syncStack struct {
	cfg         *sync.Config
	store       *kv.Store
	cache       *cache.Manager
	coordinator *sync.Coordinator
}

func (s *syncStack) close() {
	s.coordinator.Destroy()
	s.cache.Close()
	_ = s.store.Close()
}

// buildSyncStack wires the kv store, cache, connectivity, engine, and
// coordinator from the saved config.
func buildSyncStack(database *sql.DB) (*syncStack, error) {
	cfg, err := sync.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("sync is not configured, run 'sync login' first")
	}

	store, err := kv.Open(kv.Options{
		Dir:           filepath.Join(sync.ConfigDir(), "kv"),
		MaxValueBytes: kvMaxValueBytes,
		MaxTotalBytes: kvMaxTotalBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client := sync.NewAPIClient(cfg)
	conn := sync.NewConnectivity(client.Health, 0, nil)
	// Probe synchronously so the first command sees real connectivity.
	conn.SetForcedOffline(false)

	engine := sync.NewEngine(database, cfg.Owner, client, store, conn, sync.EngineOptions{}, nil)
	cacheMgr := cache.New(store, cache.Options{}, nil)
	coordinator := sync.NewCoordinator(engine, cacheMgr, conn, cfg.Owner, nil)

	return &syncStack{cfg: cfg, store: store, cache: cacheMgr, coordinator: coordinator}, nil
}

// SyncNowCommand runs a full push-then-pull pass.
func SyncNowCommand(database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("sync-now", flag.ExitOnError)
	offline := fs.Bool("offline", false, "Queue instead of hitting the network")
	fs.Parse(args)

	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	if *offline {
		stack.coordinator.EnableOfflineMode(true)
	}

	result := stack.coordinator.SyncNow(context.Background())
	printSyncResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// SyncPullCommand pulls remote changes without pushing first.
func SyncPullCommand(database *sql.DB, args []string) error {
	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	result := stack.coordinator.Pull(context.Background())
	printSyncResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// SyncRetryCommand runs queued operations whose backoff has elapsed.
func SyncRetryCommand(database *sql.DB, args []string) error {
	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	result := stack.coordinator.Retry(context.Background())
	printSyncResult(result)
	return nil
}

// SyncStatusCommand prints connectivity, queue, and cache state.
func SyncStatusCommand(database *sql.DB, args []string) error {
	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	status := stack.coordinator.Status()
	fmt.Printf("Server: %s\n", stack.cfg.Server)
	if status.Online {
		fmt.Println("Connection: online")
	} else {
		fmt.Println("Connection: offline")
	}
	if status.LastSync.IsZero() {
		fmt.Println("Last sync: never")
	} else {
		fmt.Printf("Last sync: %s\n", status.LastSync.Local().Format(time.RFC1123))
	}
	fmt.Printf("Pending operations: %d\n", status.PendingOps)

	stats := stack.cache.GetStats()
	fmt.Printf("Cache: %d entry(ies), %d byte(s)\n", stats.Entries, stats.TotalBytes)
	if stats.Disabled {
		fmt.Println("Cache: disabled after quota exhaustion")
	}
	return nil
}

// CacheInfoCommand lists every cache entry for debugging.
func CacheInfoCommand(database *sql.DB, args []string) error {
	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	infos := stack.cache.GetInfo()
	if len(infos) == 0 {
		fmt.Println("Cache is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tBYTES\tAGE\tEXPIRES\tSTATE")
	for _, info := range infos {
		state := "live"
		if info.Expired {
			state = "expired"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			info.Key,
			info.Bytes,
			time.Since(info.Timestamp).Round(time.Second),
			info.ExpiresAt.Local().Format("15:04:05"),
			state)
	}
	w.Flush()
	return nil
}

func printSyncResult(r *sync.SyncResult) {
	if r.Success {
		fmt.Printf("✓ Synced %d record(s)\n", r.SyncedCount)
		return
	}
	fmt.Printf("✗ Sync incomplete: %d synced, %d failed\n", r.SyncedCount, r.FailedCount)
	for _, serr := range r.Errors {
		fmt.Printf("  [%s] %s\n", serr.Type, serr.Message)
	}
}
