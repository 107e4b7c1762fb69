package stackspot

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{
		ClientID:  "id",
		ClientKey: "key",
		RemoteQC:  "qc",
	}.withDefaults()

	if cfg.Realm != DefaultRealm {
		t.Errorf("Realm = %q; want %q", cfg.Realm, DefaultRealm)
	}
	if cfg.AuthBaseURL != DefaultAuthBaseURL || cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("base URLs not defaulted: %q %q", cfg.AuthBaseURL, cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second || cfg.PollTimeout != 60*time.Second {
		t.Errorf("poll tuning not defaulted: %v %v", cfg.PollInterval, cfg.PollTimeout)
	}
	if cfg.RefreshSkew != 30*time.Second {
		t.Errorf("RefreshSkew = %v; want 30s", cfg.RefreshSkew)
	}
	if cfg.HTTPTimeout >= cfg.PollTimeout {
		t.Errorf("HTTPTimeout %v should be short relative to PollTimeout %v", cfg.HTTPTimeout, cfg.PollTimeout)
	}
}

func TestConfigURLs(t *testing.T) {
	cfg := Config{
		ClientID:    "id",
		ClientKey:   "key",
		Realm:       "my realm",
		RemoteQC:    "my qc",
		AuthBaseURL: "https://auth.example.com/",
		APIBaseURL:  "https://api.example.com",
	}.withDefaults()

	if got, want := cfg.tokenURL(), "https://auth.example.com/realms/my%20realm/protocol/openid-connect/token"; got != want {
		t.Errorf("tokenURL = %q; want %q", got, want)
	}
	if got, want := cfg.createExecutionURL(""), "https://api.example.com/v1/quick-commands/create-execution/my%20qc"; got != want {
		t.Errorf("createExecutionURL = %q; want %q", got, want)
	}
	if got, want := cfg.createExecutionURL("c 1"), "https://api.example.com/v1/quick-commands/create-execution/my%20qc?conversation_id=c+1"; got != want {
		t.Errorf("createExecutionURL with conversation = %q; want %q", got, want)
	}
	if got, want := cfg.checkExecutionURL("e1"), "https://api.example.com/v1/quick-commands/execution/e1"; got != want {
		t.Errorf("checkExecutionURL = %q; want %q", got, want)
	}
}

func TestConfigUserAgent(t *testing.T) {
	cfg := Config{}.withDefaults()
	if got := cfg.userAgent(); got != DefaultUserAgent {
		t.Errorf("userAgent = %q; want %q", got, DefaultUserAgent)
	}

	cfg.UserAgent = "MyApp/2.0"
	if got := cfg.userAgent(); got != "MyApp/2.0 "+DefaultUserAgent {
		t.Errorf("custom userAgent = %q", got)
	}
}
