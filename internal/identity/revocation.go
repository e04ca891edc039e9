package identity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "identity:tokens_valid_after:"

// RevocationStore records per-account session cut-off instants.
type RevocationStore interface {
	RevocationChecker
	Revoke(ctx context.Context, accountID string, at time.Time) error
}

type redisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore stores cut-offs as unix seconds under one key per account.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{client: client}
}

func (s *redisRevocationStore) Revoke(ctx context.Context, accountID string, at time.Time) error {
	return s.client.Set(ctx, revocationKeyPrefix+accountID, at.Unix(), 0).Err()
}

func (s *redisRevocationStore) TokensValidAfter(ctx context.Context, accountID string) (time.Time, error) {
	val, err := s.client.Get(ctx, revocationKeyPrefix+accountID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}

type memoryRevocationStore struct {
	mu    sync.RWMutex
	after map[string]time.Time
}

// NewMemoryRevocationStore keeps cut-offs in process memory.
func NewMemoryRevocationStore() RevocationStore {
	return &memoryRevocationStore{after: make(map[string]time.Time)}
}

func (s *memoryRevocationStore) Revoke(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after[accountID] = at.Truncate(time.Second)
	return nil
}

func (s *memoryRevocationStore) TokensValidAfter(_ context.Context, accountID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.after[accountID], nil
}
