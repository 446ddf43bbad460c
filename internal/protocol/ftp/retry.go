package ftp

import (
	"context"
	"time"
)

// Backoff computes the wait before retry attempt n (n starts at 1 for the
// first resend). Correctness does not depend on the curve, only on the
// guarantee that a failed wait always either retries or terminates.
type Backoff func(attempt int) time.Duration

// ConstantBackoff waits the same duration before every resend. This is the
// default: telemetry links drop packets because of interference, not load,
// so backing off rarely helps.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles the wait per attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
