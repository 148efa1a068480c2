package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// RetryPolicy is exponential backoff with full jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var (
	// ReadPolicy applies to search calls made while a user waits.
	ReadPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	// IngestPolicy applies to background ingestion.
	IngestPolicy = RetryPolicy{MaxAttempts: 8, BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
)

// StatusError is a non-2xx answer from the memory service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memory service returned %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a transient transport or server failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	// EAI_AGAIN surfaces as a temporary DNS error.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}

// delay returns the full-jitter backoff before retry number attempt (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	ceiling := p.MaxDelay
	if attempt < 30 {
		if d := p.BaseDelay << attempt; d > 0 && (p.MaxDelay <= 0 || d < p.MaxDelay) {
			ceiling = d
		}
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

// Do runs fn until it succeeds, fails with a non-retryable error, attempts
// run out, or ctx is done. Each attempt gets its own deadline when attemptTimeout > 0.
func (p RetryPolicy) Do(ctx context.Context, op string, attemptTimeout time.Duration, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = runAttempt(ctx, attemptTimeout, fn)
		if lastErr == nil {
			return nil
		}
		// A caller deadline or cancellation is final even though the error looks transient.
		if ctx.Err() != nil {
			return lastErr
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.delay(attempt)
		slog.Debug("memory request failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"wait_time", wait,
			"error", lastErr)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}
	return &RetriesExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

// RetriesExhaustedError is a retryable failure that outlived every attempt.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

func runAttempt(ctx context.Context, attemptTimeout time.Duration, fn func(ctx context.Context) error) error {
	if attemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}
