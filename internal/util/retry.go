package util

import (
	"context"
	"fmt"
	"time"
)

const maxBackoff = 30 * time.Second

// RetryWithBackoff calls fn up to maxRetries+1 times, doubling the wait
// between attempts (1s, 2s, 4s... capped at 30s). fn receives the 0-indexed
// attempt number. A cancelled context aborts the wait immediately.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := time.Duration(1<<attempt) * time.Second
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
