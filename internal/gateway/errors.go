package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call. Every error returned by the gateway
// carries exactly one Kind; callers branch on it instead of status codes.
type Kind string

const (
	// KindNetwork covers transport failures and timeouts: no usable response.
	KindNetwork Kind = "network"
	// KindUnauthorized is an HTTP 401.
	KindUnauthorized Kind = "unauthorized"
	// KindClient covers the remaining 4xx range: validation, not-found, conflict.
	KindClient Kind = "client"
	// KindServer covers 5xx responses.
	KindServer Kind = "server"
	// KindUnknown is a response whose error body could not be interpreted.
	KindUnknown Kind = "unknown"
)

const unknownMessage = "An unexpected error occurred"

// Error is the gateway's normalized failure. Code and Message come from the
// server's {code, message} body when present; Status is the HTTP status (0
// for transport failures); RequestID is the X-Request-ID the call carried.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Status    int
	RequestID string
	cause     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the Kind from any error. Non-gateway errors report
// KindUnknown.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// Retryable reports whether a failure class may be retried: only transport
// failures and server errors qualify. Unauthorized and other client errors
// never do.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// UserMessage returns the normalized message for any error, suitable for a
// toast.
func UserMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return unknownMessage
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindClient
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
