// Package retry runs operations with bounded, backed-off retries.
//
// Only transient typed errors (see pkg/errors) are retried by default, and
// MaxAttempts counts the first attempt, so an operation never runs more
// than MaxAttempts times:
//
//	err := retry.Do(func() error {
//		_, err := collaborator.Download(ctx, req)
//		return err
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.FromConfig(cfg.Download.Backoff),
//		Context:     ctx,
//	})
package retry
