// Package ratelimit throttles outgoing download requests.
//
// TokenBucket hands out a fixed number of tokens per refill period; the
// download collaborator calls Wait(ctx) before every HTTP request:
//
//	limiter := ratelimit.PerMinute(cfg.Download.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
