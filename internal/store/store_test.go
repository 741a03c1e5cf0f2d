// ABOUTME: Tests for PrincipalStore implementations
// ABOUTME: Runs the same CRUD and concurrency checks against MemoryStore and SQLiteStore

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func implementations(t *testing.T) map[string]PrincipalStore {
	mem := NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	return map[string]PrincipalStore{
		"memory": mem,
		"sqlite": setupTestStore(t),
	}
}

func testPrincipal(id string) *Principal {
	pk := []byte("public-key-for-" + id)
	return &Principal{
		ID:          id,
		Scheme:      "dilithium2",
		PublicKey:   pk,
		Fingerprint: Fingerprint(pk),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestPrincipalStore_CreateAndGet(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPrincipal("alice")

			require.NoError(t, s.CreatePrincipal(ctx, p))

			got, err := s.GetPrincipal(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice", got.ID)
			assert.Equal(t, "dilithium2", got.Scheme)
			assert.Equal(t, p.PublicKey, got.PublicKey)
			assert.Equal(t, p.Fingerprint, got.Fingerprint)
			assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestPrincipalStore_Duplicate(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreatePrincipal(ctx, testPrincipal("alice")))

			err := s.CreatePrincipal(ctx, testPrincipal("alice"))
			assert.ErrorIs(t, err, ErrPrincipalExists)
		})
	}
}

func TestPrincipalStore_SamePublicKeyAllowed(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := testPrincipal("alice")
			b := testPrincipal("bob")
			b.PublicKey = a.PublicKey
			b.Fingerprint = a.Fingerprint

			require.NoError(t, s.CreatePrincipal(ctx, a))
			require.NoError(t, s.CreatePrincipal(ctx, b))
		})
	}
}

func TestPrincipalStore_NotFound(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetPrincipal(ctx, "nobody")
			assert.ErrorIs(t, err, ErrNotFound)

			exists, err := s.PrincipalExists(ctx, "nobody")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestPrincipalStore_Exists(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreatePrincipal(ctx, testPrincipal("carol")))

			exists, err := s.PrincipalExists(ctx, "carol")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestPrincipalStore_List(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"charlie", "alice", "bob"} {
				require.NoError(t, s.CreatePrincipal(ctx, testPrincipal(id)))
			}

			list, err := s.ListPrincipals(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "alice", list[0].ID)
			assert.Equal(t, "bob", list[1].ID)
			assert.Equal(t, "charlie", list[2].ID)
		})
	}
}

func TestPrincipalStore_ConcurrentCreate(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			var mu sync.Mutex
			successes := 0
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.CreatePrincipal(ctx, testPrincipal("racer")); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := testPrincipal("alice")
	require.NoError(t, s.CreatePrincipal(ctx, p))
	p.PublicKey[0] ^= 0xFF

	got, err := s.GetPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, byte('p'), got.PublicKey[0])

	got.PublicKey[0] = 'x'
	again, err := s.GetPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, byte('p'), again.PublicKey[0])
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "principals.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.CreatePrincipal(ctx, testPrincipal("alice")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ID)
	assert.Equal(t, testPrincipal("alice").Fingerprint, got.Fingerprint)

	var columns []string
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('principals') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"principal_id", "scheme", "public_key", "fingerprint", "created_at"}, columns)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("key-a"))
	b := Fingerprint([]byte("key-b"))

	assert.True(t, strings.HasPrefix(a, FingerprintPrefix))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("key-a")))
	assert.Greater(t, len(a), len(FingerprintPrefix)+40, fmt.Sprintf("fingerprint %q too short", a))
}
