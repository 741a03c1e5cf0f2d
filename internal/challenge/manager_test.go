// ABOUTME: Tests for the challenge manager
// ABOUTME: Covers single use, last-issued-wins, expiry, sweeping, and concurrent consume

package challenge

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup map[string]bool

func (f fakeLookup) PrincipalExists(ctx context.Context, id string) (bool, error) {
	return f[id], nil
}

type failingLookup struct{}

func (failingLookup) PrincipalExists(ctx context.Context, id string) (bool, error) {
	return false, errors.New("store offline")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(fakeLookup{"alice": true, "bob": true}, opts...)
	t.Cleanup(m.Close)
	return m
}

func TestManager_IssueAndConsume(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := m.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Owner)
	assert.Len(t, c.Nonce, NonceSize)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, DefaultTTL, c.ExpiresAt.Sub(c.IssuedAt))
	assert.Equal(t, 1, m.Outstanding())

	got, err := m.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, c.Nonce, got.Nonce)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_ConsumeTwice(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)

	_, err = m.Consume("alice")
	require.NoError(t, err)

	_, err = m.Consume("alice")
	assert.ErrorIs(t, err, ErrNoOutstandingChallenge)
}

func TestManager_ConsumeNeverIssued(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Consume("alice")
	assert.ErrorIs(t, err, ErrNoOutstandingChallenge)

	// unknown principals look the same as known ones with no challenge
	_, err2 := m.Consume("mallory")
	assert.Equal(t, err, err2)
}

func TestManager_LastIssuedWins(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, "alice")
	require.NoError(t, err)
	second, err := m.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, bytes.Equal(first.Nonce, second.Nonce))
	assert.Equal(t, 1, m.Outstanding())

	got, err := m.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, second.Nonce, got.Nonce)

	_, err = m.Consume("alice")
	assert.ErrorIs(t, err, ErrNoOutstandingChallenge)
}

func TestManager_PrincipalsIndependent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Issue(ctx, "alice")
	require.NoError(t, err)
	b, err := m.Issue(ctx, "bob")
	require.NoError(t, err)

	gotB, err := m.Consume("bob")
	require.NoError(t, err)
	assert.Equal(t, b.Nonce, gotB.Nonce)

	gotA, err := m.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, a.Nonce, gotA.Nonce)
}

func TestManager_IssueUnknownPrincipal(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Issue(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_IssueLookupError(t *testing.T) {
	m := NewManager(failingLookup{})
	defer m.Close()

	_, err := m.Issue(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPrincipalNotFound)
}

func TestManager_IssueReturnsCopy(t *testing.T) {
	m := newTestManager(t)

	c, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)
	original := append([]byte(nil), c.Nonce...)
	c.Nonce[0] ^= 0xFF

	got, err := m.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, original, got.Nonce)
}

func TestManager_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, WithClock(clock.Now), WithTTL(time.Minute))
	assert.Equal(t, time.Minute, m.TTL())

	_, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = m.Consume("alice")
	assert.ErrorIs(t, err, ErrNoOutstandingChallenge)

	// the expired challenge was removed by the failed consume
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_ConsumeBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, WithClock(clock.Now), WithTTL(time.Minute))

	_, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = m.Consume("alice")
	assert.NoError(t, err)
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, WithClock(clock.Now), WithTTL(time.Minute))
	ctx := context.Background()

	_, err := m.Issue(ctx, "alice")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = m.Issue(ctx, "bob")
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	assert.Equal(t, 1, m.sweep())
	assert.Equal(t, 1, m.Outstanding())

	_, err = m.Consume("bob")
	assert.NoError(t, err)
}

func TestManager_WithTTLIgnoresNonPositive(t *testing.T) {
	m := newTestManager(t, WithTTL(0))
	assert.Equal(t, DefaultTTL, m.TTL())
}

func TestManager_WithRand(t *testing.T) {
	m := newTestManager(t, WithRand(bytes.NewReader(bytes.Repeat([]byte{0xAB}, NonceSize))))

	c, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, NonceSize), c.Nonce)

	// the reader is exhausted, so the next issue fails instead of reusing bytes
	_, err = m.Issue(context.Background(), "bob")
	assert.Error(t, err)
}

func TestManager_ConcurrentConsume(t *testing.T) {
	m := newTestManager(t)

	for round := 0; round < 50; round++ {
		_, err := m.Issue(context.Background(), "alice")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := m.Consume("alice"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load(), "round %d", round)
	}
}

func TestManager_NoncesUnique(t *testing.T) {
	m := newTestManager(t)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		c, err := m.Issue(context.Background(), "alice")
		require.NoError(t, err)
		key := string(c.Nonce)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	m := NewManager(fakeLookup{"alice": true})
	_, err := m.Issue(context.Background(), "alice")
	require.NoError(t, err)

	m.Close()
	m.Close()
	assert.Equal(t, 0, m.Outstanding())
}
