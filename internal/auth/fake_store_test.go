package auth

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// fakeStore is an in-memory Store for service and guard tests.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]User   // by id
	names map[string]string // username -> id
	keys  map[string]APIKey // by id

	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]User),
		names: make(map[string]string),
		keys:  make(map[string]APIKey),
	}
}

func (s *fakeStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.users[user.ID] = user
	s.names[user.Username] = user.ID
	return nil
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return User{}, s.failWith
	}
	id, ok := s.names[username]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return s.users[id], nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return User{}, s.failWith
	}
	user, ok := s.users[id]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return user, nil
}

func (s *fakeStore) UpdateLoginState(_ context.Context, user User) error {
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

func (s *fakeStore) UpdatePassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
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

func (s *fakeStore) CreateAPIKey(_ context.Context, key APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *fakeStore) GetAPIKeyByHash(_ context.Context, keyHash string) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.keys {
		if key.KeyHash == keyHash && key.IsActive {
			return key, nil
		}
	}
	return APIKey{}, sql.ErrNoRows
}

func (s *fakeStore) GetAPIKeyByID(_ context.Context, id, userID string) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok || key.UserID != userID {
		return APIKey{}, sql.ErrNoRows
	}
	return key, nil
}

func (s *fakeStore) ListAPIKeys(_ context.Context, userID string) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]APIKey, 0)
	for _, key := range s.keys {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *fakeStore) DeactivateAPIKey(_ context.Context, id, userID string) error {
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

func (s *fakeStore) ReplaceAPIKeySecret(_ context.Context, id, userID, newHash, newPrefix string) error {
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

func (s *fakeStore) TouchAPIKeyUsage(_ context.Context, id string, usedAt time.Time) error {
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
