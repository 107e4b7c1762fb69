// Package stackspot implements a provider client for StackSpot AI's
// asynchronous Quick Command API. It handles the OAuth2 client-credentials
// token lifecycle, execution submission and polling, and adapts the terminal
// execution payload into the standard chat-completion shape.
package stackspot

import (
	"fmt"
	"net/url"
	"time"
)

// Default endpoint and tuning values. Every one of them can be overridden
// through Config.
const (
	DefaultAuthBaseURL = "https://idm.stackspot.com"
	DefaultAPIBaseURL  = "https://genai-code-buddy-api.stackspot.com"
	DefaultRealm       = "stackspot"
	DefaultModel       = "stackspot-ai"
	DefaultUserAgent   = "ssbridge/1.0"

	defaultHTTPTimeout    = 10 * time.Second
	defaultRefreshSkew    = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultPollTimeout    = 60 * time.Second
	defaultMaxPollRetries = 5
	defaultBackoffBase    = 1 * time.Second
	defaultBackoffCap     = 10 * time.Second
)

const (
	tokenPath           = "realms/%s/protocol/openid-connect/token"
	createExecutionPath = "v1/quick-commands/create-execution"
	checkExecutionPath  = "v1/quick-commands/execution"
)

// Config holds everything the client needs to talk to StackSpot.
type Config struct {
	// ClientID and ClientKey are the OAuth2 client-credentials pair.
	ClientID  string
	ClientKey string

	// Realm is the identity tenant qualifier (default "stackspot").
	Realm string

	// RemoteQC is the Remote Quick Command name executions are created under.
	RemoteQC string

	// AuthBaseURL and APIBaseURL override the vendor endpoints.
	AuthBaseURL string
	APIBaseURL  string

	// UserAgent, when set, is prepended to the default User-Agent string.
	UserAgent string

	// HTTPTimeout bounds each individual token, submit, and status request.
	// It is deliberately short relative to PollTimeout.
	HTTPTimeout time.Duration

	// RefreshSkew is the safety margin before token expiry at which a cached
	// token is considered stale and refreshed proactively.
	RefreshSkew time.Duration

	// PollInterval is the delay between status polls while the execution is
	// still pending or running.
	PollInterval time.Duration

	// PollTimeout is the wall-clock bound on the whole poll loop, measured
	// from submission time.
	PollTimeout time.Duration

	// MaxPollRetries is the budget of consecutive transient poll errors
	// before the poll fails. A well-formed status resets the budget.
	MaxPollRetries int

	// BackoffBase and BackoffCap shape the exponential backoff applied to
	// transient poll errors: the delay doubles from BackoffBase up to
	// BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Realm == "" {
		c.Realm = DefaultRealm
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = DefaultAuthBaseURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.RefreshSkew == 0 {
		c.RefreshSkew = defaultRefreshSkew
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.MaxPollRetries == 0 {
		c.MaxPollRetries = defaultMaxPollRetries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = defaultBackoffCap
	}
	return c
}

// Validate checks that required credentials and endpoints are usable.
// Failures are KindConfig errors and happen before any network call.
func (c Config) Validate() error {
	if c.ClientID == "" || c.ClientKey == "" {
		return &Error{
			Kind:    KindConfig,
			Message: "client ID and client key are required",
		}
	}
	if c.RemoteQC == "" {
		return &Error{
			Kind:    KindConfig,
			Message: "remote quick command name is required",
		}
	}
	for _, base := range []string{c.AuthBaseURL, c.APIBaseURL} {
		if base == "" {
			continue
		}
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &Error{
				Kind:    KindConfig,
				Message: fmt.Sprintf("invalid base URL %q", base),
			}
		}
	}
	return nil
}

// tokenURL is the OAuth2 token endpoint for the configured realm.
func (c Config) tokenURL() string {
	return joinURL(c.AuthBaseURL, fmt.Sprintf(tokenPath, url.PathEscape(c.Realm)))
}

// createExecutionURL is the submission endpoint for the configured remote
// quick command. conversationID, when non-empty, threads the execution into
// an existing conversation.
func (c Config) createExecutionURL(conversationID string) string {
	u := joinURL(c.APIBaseURL, createExecutionPath+"/"+url.PathEscape(c.RemoteQC))
	if conversationID != "" {
		u += "?conversation_id=" + url.QueryEscape(conversationID)
	}
	return u
}

// checkExecutionURL is the status endpoint for one execution.
func (c Config) checkExecutionURL(executionID string) string {
	return joinURL(c.APIBaseURL, checkExecutionPath+"/"+url.PathEscape(executionID))
}

// userAgent builds the User-Agent header, prepending any custom value.
func (c Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent + " " + DefaultUserAgent
	}
	return DefaultUserAgent
}

func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + path
}
