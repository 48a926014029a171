package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a single-process token bucket keyed by client identifier
// (usually IP). It is intentionally not distributed-safe; each API instance
// enforces its own budget.
type Limiter struct {
	rps   float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket

	now func() time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		rps:     rps,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from the caller's bucket, refilling it first based on
// elapsed time. It returns false when the bucket is empty.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * l.rps
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}

// Sweep drops buckets idle longer than maxIdle so the map doesn't grow
// unbounded. Called periodically from a background goroutine.
func (l *Limiter) Sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
