// ABOUTME: In-memory PrincipalStore, the default for a single-process authority
// ABOUTME: Copies principals on the way in and out so callers cannot mutate stored keys

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory PrincipalStore.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*Principal // keyed by principal ID
}

var _ PrincipalStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*Principal),
	}
}

// CreatePrincipal stores a copy of p.
func (m *MemoryStore) CreatePrincipal(ctx context.Context, p *Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.principals[p.ID]; exists {
		return ErrPrincipalExists
	}
	m.principals[p.ID] = clonePrincipal(p)
	return nil
}

// GetPrincipal returns a copy of the stored principal.
func (m *MemoryStore) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

// PrincipalExists reports whether id is enrolled.
func (m *MemoryStore) PrincipalExists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.principals[id]
	return ok, nil
}

// ListPrincipals returns copies of all principals ordered by ID.
func (m *MemoryStore) ListPrincipals(ctx context.Context) ([]*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Principal, 0, len(m.principals))
	for _, p := range m.principals {
		out = append(out, clonePrincipal(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close drops all principals.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.principals = make(map[string]*Principal)
	return nil
}
