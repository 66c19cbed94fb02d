package transfer

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes the wait before a retry: Base * 2^(attempt-1), varied by
// ±Jitter (a fraction of the delay) and capped at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff returns the backoff used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   500 * time.Millisecond,
		Max:    30 * time.Second,
		Jitter: 0.25,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && exp > float64(b.Max) {
		exp = float64(b.Max)
	}
	if exp > math.MaxInt64/2 {
		exp = math.MaxInt64 / 2
	}
	delay := time.Duration(exp)

	jitter := math.Min(math.Max(b.Jitter, 0), 1)
	jitterRange := int64(float64(delay) * jitter)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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
