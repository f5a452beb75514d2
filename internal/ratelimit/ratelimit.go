// Package ratelimit enforces a per-source request budget: at most
// `rate` requests within any rolling 60-second window, with a minimum
// spacing of 60/rate seconds between consecutive requests.
package ratelimit

import (
	"context"
	"time"
)

// Clock abstracts time so the limiter can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Limiter tracks a rolling 60-second window for one source. It is
// single-consumer: one fetcher owns one limiter. Concurrent callers
// need external synchronization.
type Limiter struct {
	perMinute int
	clock     Clock

	windowStart time.Time
	count       int
	lastRequest time.Time
}

// New creates a limiter allowing perMinute requests per rolling minute.
func New(perMinute int) *Limiter {
	return NewWithClock(perMinute, SystemClock)
}

// NewWithClock creates a limiter with an injected clock.
func NewWithClock(perMinute int, clock Clock) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Limiter{perMinute: perMinute, clock: clock}
}

// Acquire blocks until the next request may be issued, or returns the
// context error if cancelled before any sleep begins.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.clock.Now()

	// Reset the counter once the window has elapsed.
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Minute {
		l.count = 0
		l.windowStart = now
	}

	// Budget exhausted: wait out the remainder of the window.
	if l.count >= l.perMinute {
		if wait := time.Minute - now.Sub(l.windowStart); wait > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.clock.Sleep(wait)
		}
		l.count = 0
		l.windowStart = l.clock.Now()
	}

	// Enforce minimum spacing between consecutive requests.
	minInterval := time.Duration(float64(time.Minute) / float64(l.perMinute))
	if !l.lastRequest.IsZero() {
		if since := now.Sub(l.lastRequest); since < minInterval {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.clock.Sleep(minInterval - since)
		}
	}

	l.lastRequest = l.clock.Now()
	l.count++
	return nil
}
