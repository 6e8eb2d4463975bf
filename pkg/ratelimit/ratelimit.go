package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces operations to a fixed rate with optional jitter.
// It is safe for concurrent use by multiple goroutines. A nil *Limiter never blocks.
type Limiter struct {
	lim      *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a limiter allowing rps operations per second with a burst of one.
// jitter adds up to jitter*interval of extra random delay after each slot and is
// clamped to [0, 1]. If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	return &Limiter{
		lim:      rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next slot is available or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}

	if err := l.lim.Wait(ctx); err != nil {
		return err
	}

	if l.jitter > 0 {
		extra := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
		if extra > 0 {
			t := time.NewTimer(extra)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Unlimited reports whether Wait never blocks.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.lim == nil
}
