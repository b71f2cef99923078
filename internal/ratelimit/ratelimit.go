// Package ratelimit throttles calls to the protocol service using golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket refilled per minute.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a burst of 10% of
// that rate, at least one.
func New(requestsPerMinute int) *Limiter {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(perMinute(requestsPerMinute), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit token: %w", err)
	}
	return nil
}

// Allow reports whether a request may proceed now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetLimit updates the rate.
func (l *Limiter) SetLimit(requestsPerMinute int) {
	l.limiter.SetLimit(perMinute(requestsPerMinute))
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}
