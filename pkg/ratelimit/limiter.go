package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles outgoing requests
type Limiter interface {
	// Allow takes a token without blocking
	Allow() bool
	// Wait blocks until a token is taken or ctx is done
	Wait(ctx context.Context) error
	Reset()
}

// minPoll bounds how often Wait re-checks an empty bucket
const minPoll = 10 * time.Millisecond

// TokenBucket hands out capacity tokens per refill period. The bucket is
// refilled to capacity in one step once a full period has passed.
type TokenBucket struct {
	mu           sync.Mutex
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	now          func() time.Time
}

// NewTokenBucket returns a full bucket
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	tb := &TokenBucket{capacity: capacity, refillPeriod: refillPeriod, now: time.Now}
	tb.Reset()
	return tb
}

// PerMinute allows n requests per minute. n <= 0 disables throttling.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(n, time.Minute)
}

func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.take()
	return ok
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, wait := tb.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(max(wait, minPoll))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
	tb.mu.Unlock()
}

// take consumes a token, or reports how long until the next refill
func (tb *TokenBucket) take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
		elapsed = 0
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}
	return false, tb.refillPeriod - elapsed
}

// Unlimited never throttles
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}
