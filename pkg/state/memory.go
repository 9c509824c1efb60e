package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps conversation state in process memory.
// Used by tests and the local chat command.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*ConversationState
	locks *lockTable

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*ConversationState),
		locks: newLockTable(),
		now:   time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (*ConversationState, error) {
	m.mu.RLock()
	existing, ok := m.users[userID]
	m.mu.RUnlock()
	if ok {
		return existing.Clone(), nil
	}

	lock := m.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[userID]; ok {
		return existing.Clone(), nil
	}

	created := newState(userID, m.now().UTC())
	m.users[userID] = created
	return created.Clone(), nil
}

func (m *MemoryStore) Merge(ctx context.Context, userID string, update Update) (*ConversationState, error) {
	lock := m.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[userID]
	if !ok {
		current = newState(userID, now)
		m.users[userID] = current
	}

	apply(current, update, now)
	return current.Clone(), nil
}
