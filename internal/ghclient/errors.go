package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrRateLimited indicates the GitHub API rate limit was exhausted. It is
// transient: the window resets on its own.
var ErrRateLimited = errors.New("github API rate limit exceeded")

// FetchError is a failed API call carrying enough context to classify it.
// StatusCode is zero for transport-level failures.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying, and failing that,
// worth skipping a single (repo, type) fetch for rather than aborting the
// run: connection and read failures, timeouts, 5xx responses, and rate
// limiting. Auth failures and other 4xx responses are not transient; they
// will not get better on their own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.StatusCode >= 500:
			return true
		case fe.StatusCode == http.StatusTooManyRequests:
			return true
		case fe.StatusCode != 0:
			return false
		}
		// Transport-level failure; fall through to the net checks.
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
