package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
)

// Operation is one attempt of a retried call
type Operation func() error

// OperationWithResult is one attempt of a retried call that yields a value
type OperationWithResult[T any] func() (T, error)

// Config controls Do. Zero fields fall back to DefaultConfig.
type Config struct {
	// MaxAttempts counts the first attempt; 0 retries until RetryIf says stop
	MaxAttempts int
	Backoff     BackoffStrategy
	RetryIf     func(error) bool
	// OnRetry runs after a failed attempt, before the backoff sleep
	OnRetry func(attempt int, err error, delay time.Duration)
	Context context.Context
	Logger  logger.Logger
}

// DefaultConfig allows three attempts with the default download backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func (c *Config) withDefaults() Config {
	out := *DefaultConfig()
	if c == nil {
		return out
	}
	out.MaxAttempts = c.MaxAttempts
	out.OnRetry = c.OnRetry
	if c.Backoff != nil {
		out.Backoff = c.Backoff
	}
	if c.RetryIf != nil {
		out.RetryIf = c.RetryIf
	}
	if c.Context != nil {
		out.Context = c.Context
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	return out
}

// DefaultRetryIf retries transient typed errors only. Cancellation and
// untyped errors stop immediately.
func DefaultRetryIf(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return errs.IsTransient(err)
	}
}

// ErrMaxAttempts is wrapped into the error returned once attempts run out
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// Do calls op until it succeeds, fails permanently, runs out of attempts
// or the context ends
func Do(op Operation, cfg *Config) error {
	c := cfg.withDefaults()

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				c.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		if !c.RetryIf(err) {
			return err
		}
		if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
			c.Logger.WarnWithFields("giving up after last attempt", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("%w (%d): %w", ErrMaxAttempts, c.MaxAttempts, err)
		}

		delay := c.Backoff.NextDelay(attempt)
		if c.OnRetry != nil {
			c.OnRetry(attempt, err, delay)
		}
		c.Logger.DebugWithFields("backing off", map[string]interface{}{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if werr := Wait(c.Context, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
