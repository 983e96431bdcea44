package auth

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// NewInMemoryCredentialStore returns a CredentialStore backed by a map.
// It exists for tests and local experiments; production wiring uses the
// PostgreSQL user repository.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{users: make(map[string]models.User)}
}

// InMemoryCredentialStore implements CredentialStore without persistence.
type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put inserts or replaces a user record.
func (s *InMemoryCredentialStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// FindByID returns the stored user or repositories.ErrNotFound.
func (s *InMemoryCredentialStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

// SetRefreshToken writes only the refresh-token field of the stored user.
func (s *InMemoryCredentialStore) SetRefreshToken(_ context.Context, id, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = refreshToken
	s.users[id] = user
	return nil
}

// StoredRefreshToken reports the refresh token currently held for a user.
// Useful for asserting rotation in tests.
func (s *InMemoryCredentialStore) StoredRefreshToken(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id].RefreshToken
}

var _ CredentialStore = (*InMemoryCredentialStore)(nil)
