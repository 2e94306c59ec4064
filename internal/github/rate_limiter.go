package github

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimiter tracks the primary GitHub rate limit budget and spaces out requests.
// GraphQL queries report their budget through the rateLimit field; REST calls
// through response headers. Both feed UpdateLimits.
type RateLimiter struct {
	mu              sync.Mutex
	lastRequestTime time.Time
	minInterval     time.Duration
	logger          *slog.Logger

	remaining int
	limit     int
	resetTime time.Time
	lastCost  int

	backoffDuration time.Duration
	maxBackoff      time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		minInterval:     100 * time.Millisecond,
		logger:          logger,
		backoffDuration: 1 * time.Second,
		maxBackoff:      5 * time.Minute,
		remaining:       5000,
		limit:           5000,
	}
}

// Wait blocks until the budget allows another request
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	now := time.Now()

	var wait time.Duration
	if now.Before(rl.resetTime) && rl.remaining <= rl.lastCost {
		wait = time.Until(rl.resetTime)
		rl.logger.Warn("Rate limit budget exhausted, waiting for reset",
			"remaining", rl.remaining,
			"wait_duration", wait,
			"reset_time", rl.resetTime)
	} else if since := now.Sub(rl.lastRequestTime); since < rl.minInterval {
		wait = rl.minInterval - since
	}
	rl.mu.Unlock()

	if err := sleepContext(ctx, wait); err != nil {
		return err
	}

	rl.mu.Lock()
	if !time.Now().Before(rl.resetTime) && rl.remaining <= rl.lastCost {
		rl.remaining = rl.limit
	}
	rl.lastRequestTime = time.Now()
	rl.mu.Unlock()
	return nil
}

// UpdateLimits records the budget reported by GitHub. A zero limit means the
// response carried no rate limit information and is ignored.
func (rl *RateLimiter) UpdateLimits(remaining, limit int, resetTime time.Time) {
	if limit <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.remaining = remaining
	rl.limit = limit
	rl.resetTime = resetTime

	if remaining < 100 {
		rl.logger.Warn("GitHub API rate limit running low",
			"remaining", remaining,
			"limit", limit,
			"reset_time", resetTime)
	}
}

// RecordCost remembers the point cost of the last GraphQL query so the next
// request waits for a reset when the remaining budget cannot cover it.
func (rl *RateLimiter) RecordCost(cost int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastCost = max(cost, 0)
}

// GetStatus returns the current rate limit status
func (rl *RateLimiter) GetStatus() (remaining, limit int, resetTime time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.remaining, rl.limit, rl.resetTime
}

// StartBackoff waits for the current backoff and doubles it for the next call
func (rl *RateLimiter) StartBackoff(ctx context.Context) error {
	rl.mu.Lock()
	backoff := min(rl.backoffDuration, rl.maxBackoff)
	rl.backoffDuration = min(rl.backoffDuration*2, rl.maxBackoff)
	rl.mu.Unlock()

	rl.logger.Info("Starting backoff", "duration", backoff)
	return sleepContext(ctx, backoff)
}

// ResetBackoff resets the backoff duration after a successful request
func (rl *RateLimiter) ResetBackoff() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.backoffDuration = 1 * time.Second
}

// HandleRateLimitError waits for the known reset time, or backs off when none is known
func (rl *RateLimiter) HandleRateLimitError(ctx context.Context) error {
	rl.mu.Lock()
	resetTime := rl.resetTime
	rl.mu.Unlock()

	if time.Now().Before(resetTime) {
		waitDuration := time.Until(resetTime)
		rl.logger.Warn("Rate limit hit, waiting for reset",
			"wait_duration", waitDuration,
			"reset_time", resetTime)

		if err := sleepContext(ctx, waitDuration); err != nil {
			return err
		}
		rl.mu.Lock()
		rl.remaining = rl.limit
		rl.mu.Unlock()
		return nil
	}

	return rl.StartBackoff(ctx)
}
