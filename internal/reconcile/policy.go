package reconcile

import (
	"context"
	"time"
)

// Policy bounds the re-check loop so the contract (attempts × interval) is
// testable on its own rather than buried in timer callbacks.
type Policy struct {
	// MaxAttempts is the number of re-queries after the initial check.
	MaxAttempts int
	// Interval is the pause between attempts.
	Interval time.Duration
	// ConfirmGrace is the short wait before re-reading the wallet after a
	// confirmation, covering a webhook credit still propagating.
	ConfirmGrace time.Duration
	// NotFoundGrace is the wait before the single extra wallet refresh
	// when the order record has not appeared yet.
	NotFoundGrace time.Duration
}

// DefaultPolicy re-checks every 3 seconds up to 10 times (30s total).
var DefaultPolicy = Policy{
	MaxAttempts:   10,
	Interval:      3 * time.Second,
	ConfirmGrace:  time.Second,
	NotFoundGrace: 3 * time.Second,
}

// sleep waits without holding any lock and aborts as soon as the caller
// goes away, so no timer outlives the request.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
