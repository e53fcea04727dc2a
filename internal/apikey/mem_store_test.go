package apikey

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"neo-guardian/internal/auth"
)

// memStore is an in-memory auth.Store for handler tests.
type memStore struct {
	mu    sync.Mutex
	users map[string]auth.User
	keys  map[string]auth.APIKey
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]auth.User),
		keys:  make(map[string]auth.APIKey),
	}
}

func (s *memStore) CreateUser(_ context.Context, user auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return auth.User{}, sql.ErrNoRows
}

func (s *memStore) GetUserByID(_ context.Context, id string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (s *memStore) UpdateLoginState(_ context.Context, user auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.FailedLoginAttempts = user.FailedLoginAttempts
	stored.LockedUntil = user.LockedUntil
	stored.LastLogin = user.LastLogin
	s.users[user.ID] = stored
	return nil
}

func (s *memStore) UpdatePassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.PasswordHash = passwordHash
	stored.PasswordChangedAt = changedAt
	s.users[userID] = stored
	return nil
}

func (s *memStore) CreateAPIKey(_ context.Context, key auth.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *memStore) GetAPIKeyByHash(_ context.Context, keyHash string) (auth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.keys {
		if key.KeyHash == keyHash && key.IsActive {
			return key, nil
		}
	}
	return auth.APIKey{}, sql.ErrNoRows
}

func (s *memStore) GetAPIKeyByID(_ context.Context, id, userID string) (auth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok || key.UserID != userID {
		return auth.APIKey{}, sql.ErrNoRows
	}
	return key, nil
}

func (s *memStore) ListAPIKeys(_ context.Context, userID string) ([]auth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.APIKey, 0)
	for _, key := range s.keys {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *memStore) DeactivateAPIKey(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok || key.UserID != userID || !key.IsActive {
		return sql.ErrNoRows
	}
	key.IsActive = false
	s.keys[id] = key
	return nil
}

func (s *memStore) ReplaceAPIKeySecret(_ context.Context, id, userID, newHash, newPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok || key.UserID != userID {
		return sql.ErrNoRows
	}
	key.KeyHash = newHash
	key.KeyPrefix = newPrefix
	s.keys[id] = key
	return nil
}

func (s *memStore) TouchAPIKeyUsage(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return sql.ErrNoRows
	}
	used := usedAt
	key.LastUsedAt = &used
	s.keys[id] = key
	return nil
}
