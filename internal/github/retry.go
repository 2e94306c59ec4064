package github

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig returns the retry configuration used for report runs
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      30 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// SecondaryRateLimitBackoff is the wait applied after GitHub reports a secondary rate limit
const SecondaryRateLimitBackoff = 60 * time.Second

// RateLimitResetBuffer is added to a parsed reset time before retrying
const RateLimitResetBuffer = 5 * time.Second

// MinRateLimitWait is the minimum wait time for rate limit errors
const MinRateLimitWait = 10 * time.Second

// MaxRateLimitWait is the maximum wait time for rate limit errors
const MaxRateLimitWait = 15 * time.Minute

// Retryer retries transient GitHub failures with exponential backoff
type Retryer struct {
	config      RetryConfig
	rateLimiter *RateLimiter
	logger      *slog.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a new retryer
func NewRetryer(config RetryConfig, rateLimiter *RateLimiter, logger *slog.Logger) *Retryer {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiple < 1 {
		config.BackoffMultiple = 1
	}
	return &Retryer{
		config:      config,
		rateLimiter: rateLimiter,
		logger:      logger,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// calculateRateLimitWait determines how long to wait for a blocked rate limit to reset
func (r *Retryer) calculateRateLimitWait(err error) time.Duration {
	waitDuration := SecondaryRateLimitBackoff
	if resetTime, ok := ParseRateLimitResetTime(err); ok {
		waitDuration = time.Until(resetTime) + RateLimitResetBuffer
	}

	return min(max(waitDuration, MinRateLimitWait), MaxRateLimitWait)
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context) error

// Do executes fn until it succeeds, fails with a non-retryable error, or runs out of attempts
func (r *Retryer) Do(ctx context.Context, operation string, fn RetryFunc) error {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		err := fn(ctx)
		if err == nil {
			r.rateLimiter.ResetBackoff()
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			r.logger.Debug("Non-retryable error encountered",
				"operation", operation,
				"attempt", attempt,
				"error", err)
			return err
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		var wait time.Duration
		switch {
		case IsRateLimitBlockedError(err):
			wait = r.calculateRateLimitWait(err)
			r.logger.Warn("Rate limit blocked, waiting for reset",
				"operation", operation,
				"attempt", attempt,
				"wait_duration", wait)
		case IsSecondaryRateLimitError(err):
			wait = SecondaryRateLimitBackoff
			r.logger.Warn("Secondary rate limit hit, waiting before retry",
				"operation", operation,
				"attempt", attempt,
				"backoff", wait)
		case IsRateLimitError(err):
			r.logger.Warn("Rate limit error, waiting before retry",
				"operation", operation,
				"attempt", attempt)
			if err := r.rateLimiter.HandleRateLimitError(ctx); err != nil {
				return fmt.Errorf("rate limit handling failed: %w", err)
			}
			continue
		default:
			wait = backoff
			backoff = min(time.Duration(float64(backoff)*r.config.BackoffMultiple), r.config.MaxBackoff)
			r.logger.Info("Retryable error, backing off",
				"operation", operation,
				"attempt", attempt,
				"backoff", wait,
				"error", err)
		}

		if err := r.sleep(ctx, wait); err != nil {
			return fmt.Errorf("context cancelled during retry of %s: %w", operation, err)
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w",
		operation, r.config.MaxAttempts, lastErr)
}

// DoWithRetry executes a function that returns a value with retry logic
func DoWithRetry[T any](
	ctx context.Context,
	retryer *Retryer,
	operation string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var result T
	err := retryer.Do(ctx, operation, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
