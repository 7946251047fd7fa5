package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns an exponential delay for the given attempt, starting at base.
// jitterPct spreads the delay by up to that fraction either way.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*jitter)
}

// Policy controls Call.
type Policy struct {
	Attempts    int
	BaseBackoff time.Duration
	Jitter      float64
	// Permanent reports errors that are answers rather than failures, such as
	// not-found results. They are returned at once and count as successes.
	Permanent func(error) bool
}

// Call runs fn through the breaker, retrying failed attempts with backoff.
// A nil breaker only retries.
func Call(ctx context.Context, b *Breaker, p Policy, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if b != nil && !b.Allow(ctx) {
			if lastErr != nil {
				return lastErr
			}
			return ErrOpenCircuit
		}
		err := fn(ctx)
		if err == nil || (p.Permanent != nil && p.Permanent(err)) {
			if b != nil {
				b.Report(ctx, true)
			}
			return err
		}
		if b != nil {
			b.Report(ctx, false)
		}
		lastErr = err
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(p.BaseBackoff, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
