package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 10 * time.Minute
	maxRetryDuration  = 24 * time.Hour
)

// ErrRetriesExhausted is returned when a request keeps failing past the
// total retry window.
var ErrRetriesExhausted = errors.New("uploader: retries exhausted")

// retryableError reports whether an error is worth retrying. Connection
// level failures are transient; everything else (bad URL, cancelled
// context) is not.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryCall runs call with exponential backoff until it returns a
// result accepted by valid, a non-retryable error occurs, or the total
// retry window elapses.
func retryCall(ctx context.Context, call func() (int, error), valid func(status int) bool) error {
	deadline := time.Now().Add(maxRetryDuration)
	delay := initialRetryDelay

	for {
		lastAttempt := time.Now().After(deadline)

		status, err := call()
		switch {
		case err == nil && valid(status):
			return nil
		case err == nil:
			if lastAttempt {
				return fmt.Errorf("%w: last status %d", ErrRetriesExhausted, status)
			}
			log.Printf("[Uploader] Retryable status %d, retrying in %s", status, delay)
		case !retryableError(err) || lastAttempt:
			return err
		default:
			log.Printf("[Uploader] Request error: %v, retrying in %s", err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
