package auth

import (
	"context"
	"sync"

	"github.com/chatapi/backend/internal/models"
)

// NewInMemorySecretStore returns a SecretStore backed by an in-memory map.
func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{secrets: make(map[string]models.RefreshSecret)}
}

// InMemorySecretStore implements SecretStore for tests and local development.
type InMemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]models.RefreshSecret
}

// Save stores or replaces the refresh secret for a user.
func (s *InMemorySecretStore) Save(_ context.Context, secret models.RefreshSecret) error {
	s.mu.Lock()
	s.secrets[secret.UserID] = secret
	s.mu.Unlock()
	return nil
}

// Find retrieves the current refresh secret for a user.
func (s *InMemorySecretStore) Find(_ context.Context, userID string) (models.RefreshSecret, error) {
	s.mu.RLock()
	secret, ok := s.secrets[userID]
	s.mu.RUnlock()
	if !ok {
		return models.RefreshSecret{}, ErrSecretNotFound
	}
	return secret, nil
}

// Delete removes the refresh secret stored for a user.
func (s *InMemorySecretStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.secrets, userID)
	s.mu.Unlock()
	return nil
}

// Has reports whether a secret exists for the user. Useful for tests.
func (s *InMemorySecretStore) Has(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[userID]
	return ok
}
