package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore holds the unique ids of revoked tokens. Entries carry a
// TTL so the set does not grow past the natural lifetime of the tokens it
// invalidates. Implementations must be safe for concurrent use.
type RevocationStore interface {
	// Add marks jti revoked.
	Add(ctx context.Context, jti string, ttl time.Duration) error
	// AddIfAbsent marks jti revoked and reports whether this call was the
	// one that inserted it. Refresh rotation relies on this to give exactly
	// one of two concurrent submissions the win.
	AddIfAbsent(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationStore keeps revoked ids in a process-local map. Revocations
// do not survive a restart; tokens revoked but not yet expired become valid
// again, which is an accepted single-instance limitation.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryRevocationStore) Add(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = s.now().Add(ttl)
	s.pruneLocked()
	return nil
}

func (s *MemoryRevocationStore) AddIfAbsent(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[jti]; ok && s.now().Before(expiry) {
		return false, nil
	}
	s.entries[jti] = s.now().Add(ttl)
	s.pruneLocked()
	return true, nil
}

func (s *MemoryRevocationStore) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	return s.now().Before(expiry), nil
}

// pruneLocked drops expired entries. Called opportunistically on writes.
func (s *MemoryRevocationStore) pruneLocked() {
	if len(s.entries) < 4096 {
		return
	}
	now := s.now()
	for jti, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, jti)
		}
	}
}

// RedisRevocationStore shares revocation state across instances. Entry TTLs
// are enforced by Redis itself.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "revoked:"}
}

func (s *RedisRevocationStore) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, s.prefix+jti, "1", ttl).Err()
}

func (s *RedisRevocationStore) AddIfAbsent(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.SetNX(ctx, s.prefix+jti, "1", ttl).Result()
}

func (s *RedisRevocationStore) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
