package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation for tests and local
// development. All operations are safe for concurrent use.
type MemoryStorage struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]User
	byEmail map[string]uuid.UUID
	hashes  map[uuid.UUID][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:   make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
		hashes:  make(map[uuid.UUID][]byte),
	}
}

func (s *MemoryStorage) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return ErrEmailAlreadyExists
	}
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStorage) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryStorage) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemoryStorage) MarkEmailVerified(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.VerifiedAt = &at
	s.users[id] = user
	return nil
}

func (s *MemoryStorage) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byEmail, user.Email)
	delete(s.users, id)
	delete(s.hashes, id)
	return nil
}

func (s *MemoryStorage) StorePasswordHash(_ context.Context, userID uuid.UUID, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	s.hashes[userID] = append([]byte(nil), hash...)
	return nil
}

func (s *MemoryStorage) GetPasswordHash(_ context.Context, userID uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.hashes[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return append([]byte(nil), hash...), nil
}
