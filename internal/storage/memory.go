package storage

import (
	"context"
	"sort"
	"sync"

	"shopbridge/internal/models"
)

// MemoryStore implements the SessionStore interface using in-memory maps.
// This backend is ideal for development and testing; sessions are lost on
// restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byShop   map[string]map[string]struct{} // shop -> session IDs
}

// NewMemoryStore creates a new memory-based session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		byShop:   make(map[string]map[string]struct{}),
	}
}

// Store saves or replaces a session by its ID.
func (m *MemoryStore) Store(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If the session moved between shops, drop the old index entry.
	if existing, ok := m.sessions[session.ID]; ok && existing.Shop != session.Shop {
		delete(m.byShop[existing.Shop], session.ID)
	}

	// Store a copy to prevent external modification
	sessionCopy := *session
	m.sessions[session.ID] = &sessionCopy

	if m.byShop[session.Shop] == nil {
		m.byShop[session.Shop] = make(map[string]struct{})
	}
	m.byShop[session.Shop][session.ID] = struct{}{}

	return nil
}

// Load retrieves a session by its ID.
func (m *MemoryStore) Load(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}

	// Return a copy
	sessionCopy := *session
	return &sessionCopy, nil
}

// LoadByShop returns all sessions for a shop domain, newest first.
func (m *MemoryStore) LoadByShop(ctx context.Context, shop string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, exists := m.byShop[shop]
	if !exists {
		return []*models.Session{}, nil
	}

	result := make([]*models.Session, 0, len(ids))
	for id := range ids {
		sessionCopy := *m.sessions[id]
		result = append(result, &sessionCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[j].CreatedAt.Before(result[i].CreatedAt)
	})

	return result, nil
}

// Delete removes a session by its ID.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}

	delete(m.byShop[session.Shop], id)
	delete(m.sessions, id)
	return nil
}

// DeleteByShop removes all sessions for a shop domain.
func (m *MemoryStore) DeleteByShop(ctx context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.byShop[shop] {
		delete(m.sessions, id)
	}
	delete(m.byShop, shop)
	return nil
}

// Ping verifies the store is operational.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close clears all sessions.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*models.Session)
	m.byShop = make(map[string]map[string]struct{})
	return nil
}
