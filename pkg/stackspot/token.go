package stackspot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenInfo holds one access token and its validity window. Instances are
// immutable: a refresh replaces the whole value, never mutates it in place.
type TokenInfo struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Stale reports whether the token is within skew of expiry (or past it) and
// should be refreshed proactively.
func (t *TokenInfo) Stale(now time.Time, skew time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-skew))
}

// tokenResponse is the wire shape of the identity endpoint's 2xx response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticator owns the process-wide token cache and guarantees at most one
// outstanding token acquisition at any instant. Concurrent callers observing
// a stale or absent token all wait on the same in-flight refresh and receive
// its result (token or error) identically.
//
// Construct one per provider client; tests can instantiate isolated
// authenticators against their own endpoints.
type Authenticator struct {
	cfg    Config
	client *http.Client
	group  singleflight.Group

	mu    sync.RWMutex
	token *TokenInfo

	now func() time.Time
}

// NewAuthenticator creates an Authenticator for the given configuration.
// The configuration must already carry defaults (Client applies them).
func NewAuthenticator(cfg Config, client *http.Client) *Authenticator {
	return &Authenticator{
		cfg:    cfg,
		client: client,
		now:    time.Now,
	}
}

// Token returns a valid bearer token, refreshing it when stale or absent.
// Cancelling ctx stops the wait but not the refresh itself: an in-flight
// acquisition always runs to completion so other waiters and later calls
// benefit from the cached result.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if tok := a.cached(); tok != nil {
		return tok.Value, nil
	}

	ch := a.group.DoChan("token", func() (any, error) {
		// Another caller may have completed a refresh between the cache
		// check and joining the flight.
		if tok := a.cached(); tok != nil {
			return tok, nil
		}
		tok, err := a.fetch()
		if err != nil {
			// Leave the cache untouched: no partial TokenInfo is stored.
			return nil, err
		}
		a.mu.Lock()
		a.token = tok
		a.mu.Unlock()
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*TokenInfo).Value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached token so the next Token call acquires a fresh
// one. Used when the execution endpoint rejects a previously-valid token.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
}

// cached returns the current token if present and not stale, nil otherwise.
func (a *Authenticator) cached() *TokenInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.token != nil && !a.token.Stale(a.now(), a.cfg.RefreshSkew) {
		return a.token
	}
	return nil
}

// fetch performs one OAuth2 client-credentials exchange. It runs on its own
// timeout-bounded context, detached from any caller, so a cancelled caller
// cannot abort a refresh other waiters depend on.
func (a *Authenticator) fetch() (*TokenInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.tokenURL(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: "building token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", a.cfg.userAgent())

	log.Printf("stackspot: fetching new token from realm %q", a.cfg.Realm)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "reading token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindAuth,
			Message:    "identity endpoint rejected credentials",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "parsing token response", Err: err}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, &Error{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("token response missing access_token or expires_in: %s", string(body)),
		}
	}

	now := a.now()
	tok := &TokenInfo{
		Value:     tr.AccessToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	log.Printf("stackspot: new token obtained (expires in %ds)", tr.ExpiresIn)
	return tok, nil
}
