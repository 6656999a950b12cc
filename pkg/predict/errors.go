package predict

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per failure cause. Every error returned by Classify
// matches exactly one of them under errors.Is.
var (
	ErrInvalidEndpoint    = errors.New("invalid endpoint")
	ErrEncodingFailure    = errors.New("image encoding failed")
	ErrNetworkFailure     = errors.New("network failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrIncompleteResponse = errors.New("incomplete response")
	ErrCancelled          = errors.New("request cancelled")
)

// NetworkError carries the detail of a transport failure or a non-2xx reply.
// StatusCode is zero when no response was received.
type NetworkError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: server returned status %d: %s", ErrNetworkFailure, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: server returned status %d", ErrNetworkFailure, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrNetworkFailure, e.Err)
	default:
		return ErrNetworkFailure.Error()
	}
}

// Unwrap exposes both the sentinel and the underlying transport error.
func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetworkFailure}
	}
	return []error{ErrNetworkFailure, e.Err}
}

// Kind is a switchable form of the error taxonomy.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidEndpoint
	KindEncodingFailure
	KindNetworkFailure
	KindMalformedResponse
	KindIncompleteResponse
	KindCancelled
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:               "none",
	KindInvalidEndpoint:    "invalid_endpoint",
	KindEncodingFailure:    "encoding_failure",
	KindNetworkFailure:     "network_failure",
	KindMalformedResponse:  "malformed_response",
	KindIncompleteResponse: "incomplete_response",
	KindCancelled:          "cancelled",
	KindUnknown:            "unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindOf classifies err. Cancelled is checked first so that a cancelled
// call wrapped by a retry loop still reports as cancelled.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrInvalidEndpoint):
		return KindInvalidEndpoint
	case errors.Is(err, ErrEncodingFailure):
		return KindEncodingFailure
	case errors.Is(err, ErrNetworkFailure):
		return KindNetworkFailure
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrIncompleteResponse):
		return KindIncompleteResponse
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether a caller may reasonably retry after err.
// Only network failures qualify, and 4xx replies other than 408/429 do not.
func IsRetryable(err error) bool {
	if KindOf(err) != KindNetworkFailure {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode >= 400 && netErr.StatusCode < 500 {
		return netErr.StatusCode == http.StatusRequestTimeout || netErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// transportError maps an error from the HTTP layer onto the taxonomy.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return &NetworkError{Err: err}
}
