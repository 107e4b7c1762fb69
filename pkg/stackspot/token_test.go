package stackspot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testAuthConfig(srvURL string) Config {
	return Config{
		ClientID:    "test-client-id",
		ClientKey:   "test-client-key",
		Realm:       "test-realm",
		RemoteQC:    "test-qc",
		AuthBaseURL: srvURL,
		APIBaseURL:  srvURL,
	}.withDefaults()
}

func tokenHandler(calls *atomic.Int64, token string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil || r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"expires_in":%d}`, token, expiresIn)
	}
}

func TestSingleFlightRefresh(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the first response until all callers are in flight, so every
		// goroutine observes the empty cache before the refresh completes.
		<-release
		tokenHandler(&calls, "t1", 3600)(w, r)
	}))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	const n = 20
	tokens := make([]string, n)
	errs := make([]error, n)
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			tokens[i], errs[i] = auth.Token(context.Background())
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond) // let the goroutines reach the flight
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 token request, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "t1" {
			t.Fatalf("caller %d got token %q; want %q", i, tokens[i], "t1")
		}
	}
}

func TestCancelledCallerDoesNotAbortRefresh(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		tokenHandler(&calls, "t1", 3600)(w, r)
	}))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := auth.Token(ctx)
		errCh <- err
	}()

	// Cancel the caller while the acquisition is held in flight.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller got %v; want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return promptly")
	}

	// The refresh itself keeps running and populates the cache: the next
	// caller gets the token without a second identity-endpoint call.
	close(release)
	tok, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("token after cancelled refresh: %v", err)
	}
	if tok != "t1" {
		t.Fatalf("got token %q; want %q", tok, "t1")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected the original refresh to be reused, got %d requests", got)
	}
}

func TestTokenCachedWhileFresh(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(&calls, "t1", 3600))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	for i := 0; i < 5; i++ {
		tok, err := auth.Token(context.Background())
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if tok != "t1" {
			t.Fatalf("got token %q; want %q", tok, "t1")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 token request for 5 calls, got %d", got)
	}
}

func TestStalenessTriggersRefresh(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(&calls, "t1", 3600))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	now := time.Now()
	auth.now = func() time.Time { return now }

	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("initial token: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}

	// Just outside the skew window: still fresh, no network call.
	now = now.Add(3600*time.Second - defaultRefreshSkew - time.Second)
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("token inside validity window triggered a refresh (%d requests)", got)
	}

	// Inside the skew window: stale, exactly one proactive refresh.
	now = now.Add(2 * time.Second)
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("refreshed token: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests after staleness, got %d", got)
	}
}

func TestTokenFailureLeavesNoPartialState(t *testing.T) {
	var calls atomic.Int64
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			calls.Add(1)
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		tokenHandler(&calls, "t2", 3600)(w, r)
	}))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	_, err := auth.Token(context.Background())
	if !IsKind(err, KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401 on error, got %+v", se)
	}

	// The failed attempt stored nothing; the next call may retry immediately.
	fail.Store(false)
	tok, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if tok != "t2" {
		t.Fatalf("got token %q; want %q", tok, "t2")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(tokenHandler(&calls, "t1", 3600))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	auth.Invalidate()
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests after invalidation, got %d", got)
	}
}

func TestTokenMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	auth := NewAuthenticator(testAuthConfig(srv.URL), srv.Client())

	_, err := auth.Token(context.Background())
	if !IsKind(err, KindMalformed) {
		t.Fatalf("expected malformed-response error, got %v", err)
	}
}

func TestTokenStale(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "plenty of lifetime left", expiresAt: now.Add(time.Hour), want: false},
		{name: "just outside skew", expiresAt: now.Add(defaultRefreshSkew + time.Second), want: false},
		{name: "exactly at skew boundary", expiresAt: now.Add(defaultRefreshSkew), want: true},
		{name: "inside skew window", expiresAt: now.Add(10 * time.Second), want: true},
		{name: "already expired", expiresAt: now.Add(-time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &TokenInfo{Value: "t", IssuedAt: now.Add(-time.Hour), ExpiresAt: tt.expiresAt}
			if got := tok.Stale(now, defaultRefreshSkew); got != tt.want {
				t.Errorf("Stale() = %v; want %v", got, tt.want)
			}
		})
	}
}
