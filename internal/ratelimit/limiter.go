package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery bounds how often the idle sweep runs relative to Allow calls.
const sweepEvery = 256

// UserLimiter enforces a per-user token bucket. Buckets for users that have
// been idle past the TTL are evicted so the map does not grow without bound.
type UserLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	calls   int
	now     func() time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewUserLimiter creates a limiter allowing perMinute requests per user with
// the given burst. Buckets idle longer than ttl are dropped.
func NewUserLimiter(perMinute float64, burst int, ttl time.Duration) *UserLimiter {
	return &UserLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perMinute / 60.0),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Allow reports whether the user may make a request right now.
func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep()
	}

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.seen = l.now()

	return b.limiter.Allow()
}

// Len returns the number of tracked users.
func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets. Caller holds l.mu.
func (l *UserLimiter) sweep() {
	cutoff := l.now().Add(-l.ttl)
	for id, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
