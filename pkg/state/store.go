package state

import (
	"context"
	"sync"
	"time"
)

// Store loads and merges per-user conversation state.
//
// Load creates an empty record when none exists. Merge applies one Update
// atomically; merges for the same user are serialized, merges for different
// users proceed in parallel.
type Store interface {
	Load(ctx context.Context, userID string) (*ConversationState, error)
	Merge(ctx context.Context, userID string, update Update) (*ConversationState, error)
}

// lockTable hands out one mutex per user id so same-user operations
// serialize without a global lock.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) forUser(userID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[userID] = lock
	}
	return lock
}

func newState(userID string, now time.Time) *ConversationState {
	return &ConversationState{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
