package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every subscription that talks to
// the backend through one Client.
type RateLimiter struct {
	mu             sync.Mutex
	tokens         int
	maxTokens      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewRateLimiter allows maxTokens calls per refillInterval, refilling one
// token per interval.
func NewRateLimiter(maxTokens int, refillInterval time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Millisecond
	}
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// NewPerSecondLimiter allows a burst of perSecond calls and refills evenly
// over one second.
func NewPerSecondLimiter(perSecond int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return NewRateLimiter(perSecond, time.Second/time.Duration(perSecond))
}

// Allow takes a token if one is available without waiting.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.Allow() {
			return nil
		}

		timer := time.NewTimer(r.refillInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RateLimiter) refill() {
	elapsed := time.Since(r.lastRefill)
	newTokens := int(elapsed / r.refillInterval)
	if newTokens <= 0 {
		return
	}
	r.tokens += newTokens
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = r.lastRefill.Add(time.Duration(newTokens) * r.refillInterval)
}
