// Package config provides configuration management for ssbridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ssbridge/ssbridge/pkg/stackspot"
)

// Config holds all configuration for the ssbridge server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":7090").
	ServerAddr string

	// DataDir is the directory for persistent data (SQLite DB).
	DataDir string

	// DatabasePath is the full path to the SQLite database file.
	DatabasePath string

	// StackSpot is the provider configuration handed to the client. The
	// credentials themselves come from the STACKSPOTAI_* environment
	// variables the vendor documents.
	StackSpot stackspot.Config
}

// Load creates a Config from environment variables.
func Load() (*Config, error) {
	dataDir := envOr("SSBRIDGE_DATA_DIR", defaultDataDir())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg := &Config{
		ServerAddr:   envOr("SSBRIDGE_ADDR", ":7090"),
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "ssbridge.db"),
		StackSpot: stackspot.Config{
			ClientID:       os.Getenv("STACKSPOTAI_CLIENT_ID"),
			ClientKey:      os.Getenv("STACKSPOTAI_CLIENT_KEY"),
			Realm:          os.Getenv("STACKSPOTAI_REALM"),
			RemoteQC:       os.Getenv("STACKSPOTAI_REMOTEQC_NAME"),
			AuthBaseURL:    os.Getenv("STACKSPOTAI_AUTH_URL"),
			APIBaseURL:     os.Getenv("STACKSPOTAI_API_URL"),
			UserAgent:      os.Getenv("STACKSPOTAI_USER_AGENT"),
			PollInterval:   envOrDuration("SSBRIDGE_POLL_INTERVAL", 0),
			PollTimeout:    envOrDuration("SSBRIDGE_POLL_TIMEOUT", 0),
			MaxPollRetries: envOrInt("SSBRIDGE_MAX_POLL_RETRIES", 0),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	return c.StackSpot.Validate()
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ssbridge"
	}
	return filepath.Join(home, ".ssbridge")
}
