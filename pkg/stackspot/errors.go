package stackspot

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure so the host can decide how to react.
type ErrorKind string

const (
	// KindConfig means a required credential or setting is missing or
	// malformed. Detected before any network call, never retried.
	KindConfig ErrorKind = "config"

	// KindInvalidRequest means the caller supplied an unusable request
	// (no messages, empty content). Detected before any network call.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindAuth means the identity endpoint rejected the credentials, or the
	// execution endpoint rejected the bearer token (401/403).
	KindAuth ErrorKind = "auth"

	// KindTransient means a connection failure, timeout, or 5xx response.
	KindTransient ErrorKind = "transient_network"

	// KindMalformed means a response body did not parse per the expected
	// schema. Transient during polling, fatal during submission.
	KindMalformed ErrorKind = "malformed_response"

	// KindPollExhausted means the transient-error retry budget ran out
	// before a well-formed status was observed.
	KindPollExhausted ErrorKind = "poll_exhausted"

	// KindPollTimeout means the wall-clock polling deadline elapsed before
	// the execution reached a terminal state.
	KindPollTimeout ErrorKind = "poll_timeout"

	// KindExecution means the execution itself reached the failed state with
	// a vendor-supplied error detail.
	KindExecution ErrorKind = "execution_failed"
)

// Error is the typed failure returned by every operation in this package.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int    // HTTP status, when the failure came from a response
	Body       string // vendor response body, when captured
	Err        error  // wrapped cause, when any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("stackspot: %s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// HTTPStatus maps an error to the HTTP status the bridge should answer with.
// Non-provider errors map to 500.
func HTTPStatus(err error) int {
	var se *Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Kind {
	case KindConfig, KindInvalidRequest:
		return http.StatusBadRequest
	case KindAuth:
		if se.StatusCode == http.StatusForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindPollExhausted, KindPollTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
