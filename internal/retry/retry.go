// Package retry runs an operation under a bounded-attempt backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how often and how slowly an operation is retried.
// Jitter is the randomization factor applied to each wait.
type Policy struct {
	MaxAttempts int           `toml:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `toml:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `toml:"max_delay" yaml:"max_delay"`
	Multiplier  float64       `toml:"multiplier" yaml:"multiplier"`
	Jitter      float64       `toml:"jitter" yaml:"jitter"`
}

// DefaultPolicy makes three attempts waiting 2s then 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
	}
}

// Validate reports configuration mistakes.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0 || p.MaxDelay < 0:
		return errors.New("delays must not be negative")
	case p.Multiplier < 1:
		return fmt.Errorf("multiplier must be at least 1, got %g", p.Multiplier)
	case p.Jitter < 0 || p.Jitter > 1:
		return fmt.Errorf("jitter must be within [0, 1], got %g", p.Jitter)
	}
	return nil
}

// BackOff builds the exponential schedule for p. A zero MaxDelay leaves the
// wait uncapped.
func (p Policy) BackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = max(p.Multiplier, 1)
	bo.RandomizationFactor = p.Jitter
	bo.MaxInterval = p.MaxDelay
	if bo.MaxInterval <= 0 {
		bo.MaxInterval = time.Duration(math.MaxInt64)
	}
	bo.Reset()
	return bo
}

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, returns a non-retryable error, attempts run
// out or ctx is cancelled. A nil classifier retries every error.
func Do(ctx context.Context, p Policy, isRetryable Classifier, logger *slog.Logger, op func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var (
		calls     int
		lastErr   error
		permanent bool
	)
	operation := func() (struct{}, error) {
		calls++
		lastErr = op(ctx)
		if lastErr != nil && isRetryable != nil && !isRetryable(lastErr) {
			permanent = true
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	}
	notify := func(err error, next time.Duration) {
		if logger != nil {
			logger.Warn("operation attempt failed",
				"attempt", calls,
				"max_attempts", attempts,
				"retry_in", next,
				"error", err)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	switch {
	case err == nil:
		if calls > 1 && logger != nil {
			logger.Info("operation succeeded after retry", "attempt", calls)
		}
		return nil
	case permanent:
		return lastErr
	case ctx.Err() != nil:
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	}
	return &ExhaustedError{Attempts: calls, Err: lastErr}
}
