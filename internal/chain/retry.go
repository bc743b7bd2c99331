package chain

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// do runs fn until it succeeds, MaxRetries extra attempts are spent, or ctx ends.
// The delay doubles after every failure, up to maxRetryDelay.
func (rc RetryConfig) do(ctx context.Context, fn func(context.Context) error) error {
	retries := rc.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := rc.BaseDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			if delay *= 2; delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	if retries == 0 {
		return err
	}
	return fmt.Errorf("after %d attempts: %w", retries+1, err)
}
