package stackspot

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client talks to the StackSpot AI Quick Command API. It is safe for
// concurrent use: independent completion calls run fully in parallel, and
// only token acquisition is serialized (see Authenticator).
type Client struct {
	cfg  Config
	http *http.Client
	auth *Authenticator
	now  func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client. The configuration is validated up front; a missing
// credential fails fast with a KindConfig error before any network call.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.auth = NewAuthenticator(cfg, c.http)
	return c, nil
}

// CallOption customizes a single Complete call.
type CallOption func(*CallOptions)

// CallOptions collects per-call settings. Alternate Provider implementations
// apply the options themselves to honor them.
type CallOptions struct {
	// Progress, when set, is invoked after every poll attempt.
	Progress func(PollProgress)
}

// WithProgress registers a callback invoked after every poll attempt.
func WithProgress(fn func(PollProgress)) CallOption {
	return func(o *CallOptions) { o.Progress = fn }
}

// Complete runs one full completion: validate, authenticate, submit, poll,
// adapt. It returns either a populated chat-completion or a typed *Error.
//
// If the execution endpoint rejects a previously-valid cached token (401/403
// on submission), the client invalidates the token, re-fetches once, and
// retries the submission exactly once; a second rejection is terminal.
func (c *Client) Complete(ctx context.Context, req ChatRequest, opts ...CallOption) (*ChatCompletion, error) {
	var callOpts CallOptions
	for _, opt := range opts {
		opt(&callOpts)
	}

	prompt, err := buildPrompt(req.Messages)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	handle, err := c.submit(ctx, token, req, prompt)
	if err != nil && IsKind(err, KindAuth) {
		// The token was accepted at fetch time but rejected by the execution
		// endpoint: expired in between, or revoked. One forced re-auth.
		log.Printf("stackspot: submission rejected the token, forcing one re-auth")
		c.auth.Invalidate()
		token, err = c.auth.Token(ctx)
		if err != nil {
			return nil, err
		}
		handle, err = c.submit(ctx, token, req, prompt)
	}
	if err != nil {
		return nil, err
	}

	status, err := c.poll(ctx, handle, callOpts.Progress)
	if err != nil {
		return nil, err
	}

	return c.toCompletion(req.Model, status)
}

// CheckAuth verifies the configured credentials by acquiring a token. It
// makes no execution call.
func (c *Client) CheckAuth(ctx context.Context) error {
	_, err := c.auth.Token(ctx)
	return err
}

// buildPrompt flattens the message list into the vendor's single input text.
// Empty lists and blank message contents are rejected before any network
// call.
func buildPrompt(messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", &Error{Kind: KindInvalidRequest, Message: "no messages provided"}
	}

	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return "", &Error{Kind: KindInvalidRequest, Message: "empty content in message"}
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
