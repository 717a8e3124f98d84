package ghclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRetrier(attempts int) Retrier {
	return Retrier{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := testRetrier(3)
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrierGivesUpAfterMaxAttempts(t *testing.T) {
	r := testRetrier(3)
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return ErrRateLimited
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Do = %v, want the last transient error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts", calls)
	}
}

func TestRetrierDoesNotRetryFatalErrors(t *testing.T) {
	r := testRetrier(3)
	fatal := &FetchError{Op: "op", StatusCode: 401, Err: errors.New("bad credentials")}
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do = %v, want the fatal error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1: auth failures do not get better", calls)
	}
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := Retrier{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "op", func() error { return ErrRateLimited })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do = %v, want context.Canceled instead of sleeping out the backoff", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"wrapped rate limit", &FetchError{Op: "op", Err: ErrRateLimited}, true},
		{"server error", &FetchError{Op: "op", StatusCode: 502, Err: errors.New("bad gateway")}, true},
		{"too many requests", &FetchError{Op: "op", StatusCode: 429, Err: errors.New("slow down")}, true},
		{"unauthorized", &FetchError{Op: "op", StatusCode: 401, Err: errors.New("bad credentials")}, false},
		{"not found", &FetchError{Op: "op", StatusCode: 404, Err: errors.New("missing")}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
