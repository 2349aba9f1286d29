package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0, +/- jitter applied to each delay
	MaxSameErrorType int     // After N consecutive same-type errors, treat as permanent
}

// DefaultConfig returns defaults for database operations:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// ConflictConfig is tuned for optimistic-concurrency retries on a single
// compound: short delays, a few more attempts, no escalation.
func ConflictConfig() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// wait sleeps for the current delay and returns the next one.
func wait(ctx context.Context, cfg *Config, delay time.Duration) (time.Duration, error) {
	timer := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return delay, ctx.Err()
	}

	next := time.Duration(float64(delay) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next, nil
}

// Do executes fn with exponential backoff retry logic.
// Returns nil on success, or last error after all retries exhausted.
// Respects context cancellation during wait periods.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt < cfg.MaxRetries {
			var err error
			if delay, err = wait(ctx, cfg, delay); err != nil {
				return err
			}
		}
	}

	return lastErr
}

// DoWithResult executes fn and returns both result and error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	var result T
	err := DoIfRetryable(ctx, cfg, func() error {
		r, err := fn()
		result = r
		return err
	})
	return result, err
}

// RetryableError is an interface for errors that explicitly declare their retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

// permanentErrors are application outcomes that no retry can change.
var permanentErrors = []error{
	apperrors.ErrNotFound,
	apperrors.ErrVersionNotFound,
	apperrors.ErrValidation,
	apperrors.ErrConflict,
}

// statusCodePattern matches retryable HTTP status codes as whole numbers, so
// digit runs inside identifiers such as UUIDs do not count.
var statusCodePattern = regexp.MustCompile(`\b(429|502|503|504)\b`)

// IsRetryable determines if an error is transient and worth retrying.
//
// The function checks errors in this order:
//  1. context cancellation and permanent application errors are never retryable
//  2. ErrTransient and ErrStaleVersion anywhere in the chain are retryable
//  3. an error in the chain implementing RetryableError decides for itself
//  4. otherwise, pattern-match against known transient error strings
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, perm := range permanentErrors {
		if errors.Is(err, perm) {
			return false
		}
	}
	if errors.Is(err, apperrors.ErrTransient) || errors.Is(err, apperrors.ErrStaleVersion) {
		return true
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		// Connection errors
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"timed out",
		"temporary failure",
		"too many connections",
		"deadlock",
		"network is unreachable",
		// HTTP error messages
		"rate limit",
		"service unavailable",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return statusCodePattern.MatchString(errStr)
}

// classifyErrorType extracts a category from err so that repeated failures
// of the same kind can be detected.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}
	if errors.Is(err, apperrors.ErrStaleVersion) {
		return "stale_version"
	}

	errStr := strings.ToLower(err.Error())

	if code := statusCodePattern.FindString(errStr); code != "" {
		return code
	}

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "broken pipe"):
		return "broken_pipe"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	}

	return "unknown"
}

// DoIfRetryable only retries if the error is transient.
// Permanent errors (validation, not found, bad SQL) are returned immediately.
// After MaxSameErrorType consecutive failures of the same type the error is
// treated as permanent. Respects context cancellation during wait periods.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		currentErrorType := classifyErrorType(lastErr)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, lastErr)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			var err error
			if delay, err = wait(ctx, cfg, delay); err != nil {
				return err
			}
		}
	}

	return lastErr
}
