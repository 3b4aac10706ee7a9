// Package ratelimit implements a token bucket limiter keyed by client, used
// to slow credential guessing on the auth endpoints.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per key. Buckets for idle keys are swept
// periodically so the map does not grow without bound.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     rate.Limit
	burst    int
	lastSwep time.Time
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Idle buckets older than this are dropped during a sweep.
const idleTTL = 10 * time.Minute

// Config holds rate limiter configuration.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a Limiter. Non-positive RPS means unlimited; burst is clamped
// to at least 1.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    r,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether the key may proceed right now. It never blocks, so
// callers can reject with 429 immediately.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSwep) > idleTTL {
		l.sweep(now)
		l.lastSwep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
		}
	}
}
