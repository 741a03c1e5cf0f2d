// ABOUTME: Per-principal single-use challenge nonces with TTL expiry
// ABOUTME: Issue overwrites any live challenge; Consume removes it atomically

package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// NonceSize is the nonce length in bytes (256 bits).
	NonceSize = 32

	// DefaultTTL is how long an unconsumed challenge stays valid.
	DefaultTTL = 5 * time.Minute

	// sweepInterval is how often expired challenges are dropped.
	sweepInterval = time.Minute
)

var (
	// ErrPrincipalNotFound is returned by Issue for an unknown principal.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrNoOutstandingChallenge is returned by Consume when no live challenge
	// exists. Never issued, already consumed, superseded and expired all
	// produce this same error.
	ErrNoOutstandingChallenge = errors.New("no outstanding challenge")
)

// Challenge is a nonce issued to one principal.
type Challenge struct {
	ID        string
	Owner     string
	Nonce     []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Lookup reports whether a principal is enrolled.
type Lookup interface {
	PrincipalExists(ctx context.Context, id string) (bool, error)
}

// Manager tracks at most one live challenge per principal.
type Manager struct {
	mu         sync.Mutex
	slots      map[string]*Challenge // keyed by owner
	principals Lookup
	ttl        time.Duration
	rand       io.Reader
	now        func() time.Time
	logger     *slog.Logger
	done       chan struct{}
	closed     bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the challenge lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRand sets the nonce entropy source.
func WithRand(r io.Reader) Option {
	return func(m *Manager) { m.rand = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager. A background goroutine sweeps expired
// challenges until Close is called.
func NewManager(principals Lookup, opts ...Option) *Manager {
	m := &Manager{
		slots:      make(map[string]*Challenge),
		principals: principals,
		ttl:        DefaultTTL,
		rand:       rand.Reader,
		now:        time.Now,
		logger:     slog.Default().With("component", "challenge"),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanup()
	return m
}

// TTL returns the configured challenge lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a fresh challenge for principalID, replacing any challenge
// still outstanding for it.
func (m *Manager) Issue(ctx context.Context, principalID string) (*Challenge, error) {
	exists, err := m.principals.PrincipalExists(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	if !exists {
		return nil, ErrPrincipalNotFound
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(m.rand, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	now := m.now()
	c := &Challenge{
		ID:        uuid.New().String(),
		Owner:     principalID,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	_, replaced := m.slots[principalID]
	m.slots[principalID] = c
	m.mu.Unlock()

	m.logger.Debug("issued challenge", "principal", principalID, "challenge_id", c.ID, "replaced", replaced)
	return cloneChallenge(c), nil
}

// Consume removes and returns the live challenge for principalID. Exactly
// one of any number of concurrent callers receives it.
func (m *Manager) Consume(principalID string) (*Challenge, error) {
	m.mu.Lock()
	c, ok := m.slots[principalID]
	if ok {
		delete(m.slots, principalID)
	}
	m.mu.Unlock()

	if !ok || !m.now().Before(c.ExpiresAt) {
		return nil, ErrNoOutstandingChallenge
	}
	return c, nil
}

// Outstanding returns the number of stored challenges, expired ones included
// until the next sweep.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// cleanup runs in a background goroutine, periodically removing expired challenges.
func (m *Manager) cleanup() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

// sweep removes all expired challenges.
func (m *Manager) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for owner, c := range m.slots {
		if !now.Before(c.ExpiresAt) {
			delete(m.slots, owner)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("swept expired challenges", "count", removed)
	}
	return removed
}

// Close stops the background sweep and drops all challenges. It is safe to
// call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		close(m.done)
		m.closed = true
		m.slots = make(map[string]*Challenge)
	}
}

func cloneChallenge(c *Challenge) *Challenge {
	out := *c
	out.Nonce = append([]byte(nil), c.Nonce...)
	return &out
}
