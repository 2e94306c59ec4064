package github

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPageDelay is the pause between consecutive GitHub requests during a report run
const DefaultPageDelay = 5 * time.Second

// Throttle enforces a fixed minimum delay between consecutive page requests.
// It is preventive only; reactive backoff lives in Retryer.
type Throttle struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewThrottle creates a throttle allowing one request per delay. A zero or
// negative delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Throttle{
		limiter: rate.NewLimiter(limit, 1),
		delay:   delay,
	}
}

// Wait blocks until the next request may be sent. The first call returns immediately.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Delay returns the configured spacing between requests
func (t *Throttle) Delay() time.Duration {
	return t.delay
}
