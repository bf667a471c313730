package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lancepay/internal/logger"
)

// transientError marks failures worth retrying: timeouts, 5xx, malformed
// bodies from intermediaries. Application-level 4xx errors are never
// retried and surface immediately.
type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func transientf(format string, v ...interface{}) error {
	return transientError{err: fmt.Errorf(format, v...)}
}

func isTransient(err error) bool {
	var te transientError
	return errors.As(err, &te)
}

// backoff retries fn with exponential delay on transient errors only.
type backoff struct {
	baseDelay   time.Duration
	multiplier  int
	maxAttempts int
}

var defaultBackoff = backoff{
	baseDelay:   500 * time.Millisecond,
	multiplier:  2,
	maxAttempts: 4,
}

func (b backoff) do(ctx context.Context, op string, fn func() error) error {
	delay := b.baseDelay
	var err error

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == b.maxAttempts {
			break
		}

		logger.Debugf("%s attempt %d failed, retrying in %s: %v", op, attempt, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= time.Duration(b.multiplier)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, b.maxAttempts, err)
}
