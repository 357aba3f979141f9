// Package ratelimit implements a per-client token bucket used by the
// API middleware. Buckets refill continuously; a client with no tokens
// left gets 429 until enough time passes.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter hands out tokens per client key (typically the remote IP).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate  float64 // tokens per second
	burst float64

	// idleTTL is how long an untouched bucket survives before cleanup.
	idleTTL time.Duration
}

// New creates a limiter allowing ratePerSec sustained requests with the
// given burst headroom.
func New(ratePerSec float64, burst int) *Limiter {
	return &Limiter{
		buckets: map[string]*bucket{},
		rate:    ratePerSec,
		burst:   float64(burst),
		idleTTL: 10 * time.Minute,
	}
}

// Allow consumes one token for key, reporting whether the request may
// proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) > 1024 {
			l.cleanupLocked(now)
		}
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * l.rate
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

// cleanupLocked drops buckets idle past the TTL. Caller holds the lock.
func (l *Limiter) cleanupLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}
