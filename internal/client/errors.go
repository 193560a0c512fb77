package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrUnauthorized signals an invalid or expired access token (HTTP 401).
// The registration state machine reacts to it by re-registering.
var ErrUnauthorized = errors.New("invalid access token")

// ErrConflict signals an idempotent duplicate (HTTP 409). Not a failure.
var ErrConflict = errors.New("duplicate entity")

// StatusError is any other non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d body=%q", e.Status, e.Body)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}

// IsTransient reports whether err is worth retrying: a 5xx response, a
// timeout, or a network-level failure. Cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrConflict) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
