package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces successive navigations with a jittered delay so
// request timing never settles into a detectable cadence.
type Limiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	rng        *rand.Rand
	mu         sync.Mutex
}

func New(minDelay, maxDelay time.Duration, rng *rand.Rand) *Limiter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Limiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rng,
	}
}

// Wait blocks until the jittered interval since the previous action
// has elapsed, or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.nextDelay()

	if elapsed < delay {
		timer := time.NewTimer(delay - elapsed)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *Limiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minDelay = min
	l.maxDelay = max
}

func (l *Limiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}

	jitter := time.Duration(l.rng.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}
