// Package ratelimit bounds how often the error classifier's remote
// advisor is consulted for a given webhook, so a misbehaving endpoint
// that fails repeatedly cannot hammer the advisor the same way the
// circuit breaker stops it from hammering the subscriber itself.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter grants or denies a per-key token-bucket admission.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	perSecond    rate.Limit
	burst        int
}

// New builds a Limiter admitting up to requestsPerMinute calls per key,
// with a burst capacity of 10% of that rate (minimum 1), matching the
// teacher's webhook rate limiter sizing convention.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters:  make(map[string]*rate.Limiter),
		perSecond: rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
	}
}

// Allow reports whether a call for key may proceed right now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.perSecond, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
