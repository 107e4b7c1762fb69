package stackspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// submit starts one execution and returns its handle. Submission is never
// retried at this layer: a 401/403 is surfaced as KindAuth so Complete can
// force a single re-auth, any other failure goes straight to the caller.
func (c *Client) submit(ctx context.Context, token string, req ChatRequest, prompt string) (*ExecutionHandle, error) {
	body := executionRequest{
		InputData:      prompt,
		ConversationID: req.ConversationID,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "encoding execution request", Err: err}
	}

	url := c.cfg.createExecutionURL(req.ConversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: "building submission request", Err: err}
	}
	c.setHeaders(httpReq, token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "submission request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "reading submission response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{
			Kind:       KindAuth,
			Message:    "execution endpoint rejected the token",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindTransient,
			Message:    "execution endpoint unavailable",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &Error{
			Kind:       KindInvalidRequest,
			Message:    "execution submission rejected",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var created executionCreated
	if err := json.Unmarshal(respBody, &created); err != nil {
		// Malformed bodies are fatal during submission, unlike polling.
		return nil, &Error{Kind: KindMalformed, Message: "parsing submission response", Err: err}
	}
	if created.ExecutionID == "" {
		return nil, &Error{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("submission response missing execution_id: %s", string(respBody)),
		}
	}

	log.Printf("stackspot: execution %s started (model %s)", created.ExecutionID, req.Model)
	return &ExecutionHandle{ID: created.ExecutionID, SubmittedAt: c.now()}, nil
}

// setHeaders attaches the standard JSON and auth headers.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", c.cfg.userAgent())
	req.Header.Set("Authorization", "Bearer "+token)
}
