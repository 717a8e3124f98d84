package ghclient

import (
	"context"
	"time"

	"github.com/spiffcs/reponews/internal/log"
)

// Retrier retries an API call with exponential backoff while the error is
// transient. It is deliberately separate from the diff logic: the engine
// only ever sees the final outcome of a call.
type Retrier struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool
}

// DefaultRetrier returns the retry policy used for all GitHub calls.
func DefaultRetrier() Retrier {
	return Retrier{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. The last
// error is returned unwrapped so callers can still classify it.
func (r Retrier) Do(ctx context.Context, op string, fn func() error) error {
	retryable := r.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	delay := r.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= r.MaxAttempts || !retryable(err) {
			return err
		}
		log.Debug("retrying after transient failure",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
}
