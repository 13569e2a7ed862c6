// Package retry provides an explicit retry policy for store operations.
//
// The policy is a value that can be tested in isolation from the calls it
// wraps: it knows how many attempts to make, which errors are worth
// retrying, and how to re-establish a connection between attempts.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds retries on transient infrastructure errors.
const DefaultMaxAttempts = 3

// Policy describes how an operation is retried. The zero value retries
// nothing; use New for sane defaults.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Retryable reports whether an error is transient. Non-retryable
	// errors are surfaced immediately.
	Retryable func(error) bool

	// Reconnect, if set, is invoked before every attempt after the first.
	// A reconnect failure counts as the attempt's failure.
	Reconnect func(ctx context.Context) error

	// Backoff is the pause between attempts.
	Backoff time.Duration

	Logger *zap.Logger
}

// New returns a Policy with the default attempt bound, the default
// transient-error predicate, and the given reconnect hook (which may be
// nil).
func New(reconnect func(ctx context.Context) error, logger *zap.Logger) Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Retryable:   Transient,
		Reconnect:   reconnect,
		Backoff:     250 * time.Millisecond,
		Logger:      logger,
	}
}

// Do runs fn under the policy, returning the last error once attempts are
// exhausted. Not-found and other non-retryable errors pass through on the
// first attempt.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if p.Backoff > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.Backoff):
				}
			}
			if p.Reconnect != nil {
				if err := p.Reconnect(ctx); err != nil {
					lastErr = err
					p.Logger.Warn("reconnect failed",
						zap.String("op", op),
						zap.Int("attempt", attempt),
						zap.Error(err),
					)
					continue
				}
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		p.Logger.Warn("transient store error",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}

	return lastErr
}

// Value runs fn under the policy and returns its result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		var ferr error
		out, ferr = fn(ctx)
		return ferr
	})
	return out, err
}

// Transient is the default retryable-error predicate. It matches dropped
// and exhausted connections from both SQL drivers and gRPC transports,
// while leaving context cancellation and application errors alone.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"database is locked",
		"server closed the connection",
		"unavailable",
		"session expired",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
