package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage defines the persistence operations required by the auth service.
// Implementations return ErrUserNotFound when a lookup misses.
type Storage interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	StorePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error
	GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error)
}
