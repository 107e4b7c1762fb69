package config

import (
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SSBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("STACKSPOTAI_CLIENT_ID", "test-client-id")
	t.Setenv("STACKSPOTAI_CLIENT_KEY", "test-client-key")
	t.Setenv("STACKSPOTAI_REMOTEQC_NAME", "test-qc")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SSBRIDGE_ADDR", "")
	t.Setenv("STACKSPOTAI_REALM", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddr != ":7090" {
		t.Errorf("ServerAddr = %q; want :7090", cfg.ServerAddr)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "ssbridge.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SSBRIDGE_ADDR", ":9999")
	t.Setenv("STACKSPOTAI_REALM", "custom-realm")
	t.Setenv("STACKSPOTAI_AUTH_URL", "https://custom-auth.example.com")
	t.Setenv("STACKSPOTAI_API_URL", "https://custom-api.example.com")
	t.Setenv("STACKSPOTAI_USER_AGENT", "CustomApp/2.0")
	t.Setenv("SSBRIDGE_POLL_TIMEOUT", "90s")
	t.Setenv("SSBRIDGE_POLL_INTERVAL", "500ms")
	t.Setenv("SSBRIDGE_MAX_POLL_RETRIES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddr != ":9999" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	ss := cfg.StackSpot
	if ss.Realm != "custom-realm" {
		t.Errorf("Realm = %q", ss.Realm)
	}
	if ss.AuthBaseURL != "https://custom-auth.example.com" || ss.APIBaseURL != "https://custom-api.example.com" {
		t.Errorf("base URLs not overridden: %q %q", ss.AuthBaseURL, ss.APIBaseURL)
	}
	if ss.UserAgent != "CustomApp/2.0" {
		t.Errorf("UserAgent = %q", ss.UserAgent)
	}
	if ss.PollTimeout != 90*time.Second || ss.PollInterval != 500*time.Millisecond {
		t.Errorf("poll tuning = %v %v", ss.PollTimeout, ss.PollInterval)
	}
	if ss.MaxPollRetries != 7 {
		t.Errorf("MaxPollRetries = %d", ss.MaxPollRetries)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	t.Setenv("SSBRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("STACKSPOTAI_CLIENT_ID", "")
	t.Setenv("STACKSPOTAI_CLIENT_KEY", "")
	t.Setenv("STACKSPOTAI_REMOTEQC_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error with missing credentials")
	}
}

func TestEnvOrIgnoresBadValues(t *testing.T) {
	t.Setenv("SSBRIDGE_POLL_TIMEOUT", "not-a-duration")
	if got := envOrDuration("SSBRIDGE_POLL_TIMEOUT", 5*time.Second); got != 5*time.Second {
		t.Errorf("envOrDuration = %v; want fallback", got)
	}

	t.Setenv("SSBRIDGE_MAX_POLL_RETRIES", "NaN")
	if got := envOrInt("SSBRIDGE_MAX_POLL_RETRIES", 3); got != 3 {
		t.Errorf("envOrInt = %d; want fallback", got)
	}
}
