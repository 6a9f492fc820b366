package tracker

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrRemoteNotFound indicates the remote item does not exist. Never retried.
var ErrRemoteNotFound = errors.New("remote item not found")

// ErrConflictPending marks a sync pass parked on an operator decision.
// It is a suspended state, not a failure.
var ErrConflictPending = errors.New("conflict resolution pending operator decision")

// UnavailableError wraps a network, auth, or rate-limit failure reaching a
// tracker. The sync pass aborts cleanly; local state is untouched.
type UnavailableError struct {
	Tracker string
	Op      string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable during %s: %v", e.Tracker, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from a tracker API.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// retryable classifies failures for the backoff policy. Timeouts, 5xx and
// rate-limit responses are transient; auth and not-found are permanent.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, ErrRemoteNotFound) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Unclassified transport errors (connection reset, DNS) are worth a retry.
	return true
}
