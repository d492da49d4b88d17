package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket with lazy refill: tokens accrue as time
// passes rather than via a background goroutine, so an idle limiter costs
// nothing and there is nothing to shut down.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perToken time.Duration
	last     time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &rateLimiter{
		tokens:   float64(requestsPerMinute),
		capacity: float64(requestsPerMinute),
		perToken: time.Minute / time.Duration(requestsPerMinute),
		last:     time.Now(),
	}
}

// tryAcquire takes a token if one is available.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.accrue(time.Now())
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// wait blocks until a token is available or the context ends.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limit wait interrupted: %w", ctx.Err())
		case <-time.After(rl.nextToken()):
		}
	}
}

// accrue credits tokens for the time elapsed since the last update.
// Caller holds rl.mu.
func (rl *rateLimiter) accrue(now time.Time) {
	elapsed := now.Sub(rl.last)
	if elapsed <= 0 {
		return
	}
	rl.tokens += float64(elapsed) / float64(rl.perToken)
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.last = now
}

// nextToken estimates how long until at least one token accrues.
func (rl *rateLimiter) nextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	deficit := 1 - rl.tokens
	if deficit <= 0 {
		return time.Millisecond
	}
	return time.Duration(deficit * float64(rl.perToken))
}

// Close exists for symmetry with the backend's lifecycle; the lazy bucket
// holds no resources.
func (rl *rateLimiter) Close() {}
