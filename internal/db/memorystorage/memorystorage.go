// Package memorystorage keeps session states in process memory.
// States live until their TTL passes or the process exits.
package memorystorage

import (
	"context"
	"sync"
	"time"

	"github.com/patric-chuzhbe/signup/internal/session"
)

type entry struct {
	state     *session.State
	expiresAt time.Time
}

// MemoryStorage is a session.Store backed by a map guarded by a mutex.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates the storage. A zero ttl keeps states until Delete or process exit.
func New(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		entries: map[string]entry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStorage) expired(e entry) bool {
	return m.ttl > 0 && m.now().After(e.expiresAt)
}

func (m *MemoryStorage) Load(ctx context.Context, id string) (*session.State, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok || m.expired(e) {
		return nil, session.ErrNotFound
	}

	return e.state.Clone(), nil
}

func (m *MemoryStorage) Save(ctx context.Context, state *session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[state.ID] = entry{
		state:     state.Clone(),
		expiresAt: m.now().Add(m.ttl),
	}

	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)

	return nil
}

// PurgeExpired drops every state whose TTL has passed and returns how many were dropped.
func (m *MemoryStorage) PurgeExpired(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			purged++
		}
	}

	return purged, nil
}

func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
