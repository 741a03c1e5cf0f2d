// ABOUTME: Thread-safe denylist of revoked session IDs with per-entry expiry
// ABOUTME: Entries drop out once the token they revoke could no longer verify anyway

package revocation

import (
	"errors"
	"sync"
	"time"
)

// DefaultMaxSize bounds the list when no size is configured.
const DefaultMaxSize = 100000

// ErrFull is returned by Revoke when every slot holds a live revocation.
var ErrFull = errors.New("revocation list full")

// List tracks revoked session IDs until their tokens expire. A live entry is
// never evicted; when the list is full of live entries Revoke fails.
type List struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // session ID to the deadline it is denied until
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a List holding at most maxSize entries and starts the
// background sweep.
func New(maxSize int) *List {
	return newList(maxSize, time.Now, time.Minute)
}

func newList(maxSize int, now func() time.Time, sweepEvery time.Duration) *List {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	l := &List{
		revoked: make(map[string]time.Time),
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go l.cleanup(sweepEvery)
	return l
}

// Revoke denies id until the given time. Revoking an already revoked id
// extends the deadline if the new one is later. A deadline in the past is
// a no-op. When the list is full, expired entries are dropped first; if
// none have expired Revoke returns ErrFull.
func (l *List) Revoke(id string, until time.Time) error {
	if id == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !until.After(now) {
		return nil
	}
	if current, ok := l.revoked[id]; ok {
		if until.After(current) {
			l.revoked[id] = until
		}
		return nil
	}

	if len(l.revoked) >= l.maxSize {
		l.evictExpiredLocked(now)
		if len(l.revoked) >= l.maxSize {
			return ErrFull
		}
	}
	l.revoked[id] = until
	return nil
}

// Revoked reports whether id is currently denied.
func (l *List) Revoked(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	until, ok := l.revoked[id]
	return ok && l.now().Before(until)
}

// Len returns the number of tracked entries, expired or not.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}

// evictExpiredLocked drops entries whose deadline is not after now and
// returns how many went. mu must be held.
func (l *List) evictExpiredLocked(now time.Time) int {
	removed := 0
	for id, until := range l.revoked {
		if !now.Before(until) {
			delete(l.revoked, id)
			removed++
		}
	}
	return removed
}

func (l *List) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops entries whose deadline has passed and returns how many went.
func (l *List) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evictExpiredLocked(l.now())
}

// Close stops the background sweep. It is safe to call multiple times.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
