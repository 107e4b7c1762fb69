package stackspot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// poll queries the status endpoint until the execution reaches a terminal
// state, the transient-error budget runs out, the wall-clock deadline passes,
// or ctx is cancelled. Once any of those happens the loop stops for good: no
// further polling continues in the background.
//
// Two distinct delays drive the loop: the status poll interval after a
// well-formed pending/running status, and an exponential backoff (doubling
// from BackoffBase, capped at BackoffCap) after a transport or malformed
// response. A well-formed status resets both the retry counter and the
// backoff.
func (c *Client) poll(ctx context.Context, handle *ExecutionHandle, progress func(PollProgress)) (*executionStatus, error) {
	deadline := handle.SubmittedAt.Add(c.cfg.PollTimeout)
	backoff := c.cfg.BackoffBase

	attempt := 0
	retries := 0
	lastStatus := statusPending

	for {
		if !c.now().Before(deadline) {
			return nil, &Error{
				Kind: KindPollTimeout,
				Message: fmt.Sprintf("execution %s did not finish within %s (last status %q)",
					handle.ID, c.cfg.PollTimeout, lastStatus),
			}
		}

		attempt++
		status, err := c.checkExecution(ctx, handle.ID)
		elapsed := c.now().Sub(handle.SubmittedAt)

		var wait time.Duration
		switch {
		case err != nil && ctx.Err() != nil:
			// Host cancelled the completion: stop promptly.
			return nil, ctx.Err()

		case err != nil:
			retries++
			log.Printf("stackspot: poll %s attempt=%d elapsed=%s last=%s retry %d/%d: %v",
				handle.ID, attempt, elapsed.Round(time.Millisecond), lastStatus,
				retries, c.cfg.MaxPollRetries, err)
			if retries > c.cfg.MaxPollRetries {
				return nil, &Error{
					Kind:    KindPollExhausted,
					Message: fmt.Sprintf("giving up on execution %s after %d consecutive poll errors", handle.ID, retries),
					Err:     err,
				}
			}
			wait = backoff
			backoff = nextBackoff(backoff, c.cfg.BackoffCap)

		default:
			log.Printf("stackspot: poll %s attempt=%d elapsed=%s status=%s",
				handle.ID, attempt, elapsed.Round(time.Millisecond), status.Status)
			switch status.Status {
			case statusSucceeded, statusFailed:
				if progress != nil {
					progress(PollProgress{
						ExecutionID: handle.ID, Attempt: attempt,
						Elapsed: elapsed, LastStatus: status.Status,
					})
				}
				return status, nil
			case statusPending, statusRunning:
				lastStatus = status.Status
				// Transient errors do not accumulate across successful polls.
				retries = 0
				backoff = c.cfg.BackoffBase
				wait = c.cfg.PollInterval
			default:
				// An unknown status is a schema violation; treat it like any
				// other malformed response.
				retries++
				if retries > c.cfg.MaxPollRetries {
					return nil, &Error{
						Kind:    KindPollExhausted,
						Message: fmt.Sprintf("giving up on execution %s after %d consecutive poll errors", handle.ID, retries),
						Err:     &Error{Kind: KindMalformed, Message: fmt.Sprintf("unknown status %q", status.Status)},
					}
				}
				wait = backoff
				backoff = nextBackoff(backoff, c.cfg.BackoffCap)
			}
		}

		if progress != nil {
			progress(PollProgress{
				ExecutionID: handle.ID, Attempt: attempt, Retries: retries,
				Elapsed: elapsed, LastStatus: lastStatus,
			})
		}

		// Never sleep past the wall-clock deadline; the next iteration turns
		// the expired deadline into a PollTimeout.
		if remaining := deadline.Sub(c.now()); wait > remaining {
			wait = remaining
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// nextBackoff doubles the current error-retry delay, capped at max.
func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// checkExecution performs one status query. A 401/403 invalidates the cached
// token before returning, so the retried attempt authenticates afresh.
func (c *Client) checkExecution(ctx context.Context, executionID string) (*executionStatus, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.checkExecutionURL(executionID), nil)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: "building status request", Err: err}
	}
	c.setHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "status request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "reading status response", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.auth.Invalidate()
		return nil, &Error{
			Kind:       KindTransient,
			Message:    "status endpoint rejected the token",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindTransient,
			Message:    "status endpoint error",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var status executionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "parsing status response", Err: err}
	}
	if status.Status == "" {
		return nil, &Error{Kind: KindMalformed, Message: "status response missing status field"}
	}
	return &status, nil
}
