// ABOUTME: Per-principal token bucket limiter for challenge and login requests
// ABOUTME: Idle buckets are swept lazily; a nil limiter allows everything

package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused principal keeps its bucket.
const DefaultIdleTTL = 10 * time.Minute

// Limiter gives each principal ID its own token bucket.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithIdleTTL sets how long an unused bucket is kept. Non-positive values
// keep the default.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter refilling rps tokens per second up to burst. It
// returns nil, which allows everything, if rps or burst is not positive.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	l := &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow spends one token from principalID's bucket and reports whether one
// was available. Blank IDs are not limited; the service rejects them itself.
func (l *Limiter) Allow(principalID string) bool {
	if l == nil {
		return true
	}
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[principalID]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[principalID] = b
	}
	b.lastSeen = now
	return b.tokens.AllowN(now, 1)
}

// Len returns the number of principals holding a bucket.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked drops buckets idle longer than idleTTL. mu must be held.
func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}
