package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It is the
// development and test backend; durable deployments use MongoStore or
// RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewMemoryStore creates an in-memory session store with the given
// sliding TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	// Copy while holding the lock; Touch mutates the stored struct
	// under the write lock, so the shared pointer must never be read
	// unsynchronized.
	m.mu.RLock()
	s, exists := m.sessions[id]
	var cp Session
	if exists {
		cp = *s
	}
	m.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}

	if cp.IsExpired(m.ttl) {
		m.mu.Lock()
		// Re-check under the write lock: a concurrent Touch may have
		// refreshed the record since the copy was taken.
		if cur, ok := m.sessions[id]; ok && cur.IsExpired(m.ttl) {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}

	return &cp, nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}

	s.Touch(at)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteByUserID(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
