package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "sahayak:user:"

// RedisStore persists conversation state as JSON values in Redis.
//
// Read-modify-write merges for one user are serialized through a local lock
// table; the process is the single writer for its users, so no distributed
// lock is needed.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	locks  *lockTable

	now func() time.Time
}

type RedisOption func(*RedisStore)

// WithTTL sets an expiration on stored user records.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the storage key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects a new client and wraps it in a store.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		locks:  newLockTable(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*ConversationState, error) {
	existing, err := s.fetch(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, backend.Nil) {
		return nil, err
	}

	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock so concurrent first contacts create one record.
	existing, err = s.fetch(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, backend.Nil) {
		return nil, err
	}

	created := newState(userID, s.now().UTC())
	if err := s.save(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *RedisStore) Merge(ctx context.Context, userID string, update Update) (*ConversationState, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()

	current, err := s.fetch(ctx, userID)
	if errors.Is(err, backend.Nil) {
		current = newState(userID, now)
	} else if err != nil {
		return nil, err
	}

	apply(current, update, now)
	if err := s.save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) fetch(ctx context.Context, userID string) (*ConversationState, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("load state from redis: %w", err)
	}

	var st ConversationState
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) save(ctx context.Context, st *ConversationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := s.client.Set(ctx, s.key(st.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save state to redis: %w", err)
	}
	return nil
}
