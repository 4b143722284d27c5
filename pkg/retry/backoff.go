package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
)

// BackoffStrategy computes how long to sleep after a failed attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier after every failed
// attempt, capped at MaxDelay, and spreads it by +/- JitterFactor
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff uses the default download backoff settings
func DefaultExponentialBackoff() *ExponentialBackoff {
	return FromConfig(config.DefaultConfig().Download.Backoff)
}

// FromConfig builds an ExponentialBackoff from the download settings
func FromConfig(cfg config.BackoffConfig) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		JitterFactor: cfg.JitterFactor,
	}
}

// NextDelay returns BaseDelay * Multiplier^(attempt-1) for attempt >= 1
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	ceiling := float64(eb.MaxDelay)
	delay := float64(eb.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= eb.Multiplier
		if ceiling > 0 && delay >= ceiling {
			break
		}
	}
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}

	if eb.JitterFactor > 0 {
		spread := delay * eb.JitterFactor
		delay += spread * (2*rand.Float64() - 1)
	}
	return time.Duration(max(delay, 0))
}

// FixedBackoff sleeps the same Delay after every failure
type FixedBackoff struct {
	Delay time.Duration
}

func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return fb.Delay
}

// Wait sleeps for delay. It returns early with ctx's error once ctx is done,
// and immediately when ctx is already done.
func Wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
