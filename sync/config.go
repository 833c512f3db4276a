// ABOUTME: Sync server configuration and credential management
// ABOUTME: Handles config storage at XDG paths, environment variable overrides, and device ID generation

package sync

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/oklog/ulid/v2"
)

// Config stores sync server credentials and synchronization settings.
type Config struct {
	Server   string `json:"server"`
	Owner    string `json:"owner"`
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
	AutoSync bool   `json:"auto_sync"`
}

// ConfigDir returns the XDG-compliant directory for sync configuration.
func ConfigDir() string {
	return filepath.Join(xdg.DataHome, "leadsync")
}

// ConfigPath returns the XDG-compliant path for storing sync configuration.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync-config.json")
}

// LoadConfig loads sync configuration from the XDG data directory.
// Returns a default config if the file is not found.
// Environment variables override file values:
// - LEADSYNC_SERVER
// - LEADSYNC_OWNER
// - LEADSYNC_TOKEN
// - LEADSYNC_DEVICE_ID
// - LEADSYNC_AUTO_SYNC.
func LoadConfig() (*Config, error) {
	path := ConfigPath()

	cfg := &Config{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open sync config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode sync config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if server := os.Getenv("LEADSYNC_SERVER"); server != "" {
		cfg.Server = server
	}
	if owner := os.Getenv("LEADSYNC_OWNER"); owner != "" {
		cfg.Owner = owner
	}
	if token := os.Getenv("LEADSYNC_TOKEN"); token != "" {
		cfg.Token = token
	}
	if deviceID := os.Getenv("LEADSYNC_DEVICE_ID"); deviceID != "" {
		cfg.DeviceID = deviceID
	}
	if autoSync := os.Getenv("LEADSYNC_AUTO_SYNC"); autoSync != "" {
		cfg.AutoSync = autoSync == "true" || autoSync == "1"
	}
}

// SaveConfig saves sync configuration to the XDG data directory.
func SaveConfig(cfg *Config) error {
	path := ConfigPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create sync config directory: %w", err)
	}

	// Token lives in this file, so keep permissions tight
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create sync config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode sync config: %w", err)
	}

	return nil
}

// IsConfigured checks if sync is properly configured with required credentials.
func (c *Config) IsConfigured() bool {
	return c.Server != "" && c.Owner != "" && c.Token != "" && c.DeviceID != ""
}

// GenerateDeviceID generates a new ULID for device identification.
func GenerateDeviceID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
