package venue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers network failures, timeouts, 5xx and 429 responses.
	ErrUnavailable = errors.New("venue: upstream unavailable")

	// ErrNotFound is a 404. Collection fetches treat it as empty.
	ErrNotFound = errors.New("venue: not found")

	// ErrUnauthorized is a 401/403, typically a collection that needs
	// elevated credentials.
	ErrUnauthorized = errors.New("venue: unauthorized")

	// ErrMalformed means the body could not be decoded as a collection.
	ErrMalformed = errors.New("venue: malformed response")

	// ErrHardCapReached accompanies partial results when pagination stops
	// at its safety limit.
	ErrHardCapReached = errors.New("venue: pagination hard cap reached")
)

// UpstreamError describes a failed venue request. Err is one of the
// package sentinels; Cause holds the underlying error, if any.
type UpstreamError struct {
	Path   string
	Status int
	Err    error
	Cause  error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: GET %s", e.Err, e.Path)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed.
func (e *UpstreamError) retryable() bool {
	return errors.Is(e.Err, ErrUnavailable)
}
