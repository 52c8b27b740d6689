package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskgate/pkg/pg"
)

// PGStorage persists accounts and credentials in PostgreSQL.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a PostgreSQL-backed Storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

func (s *PGStorage) CreateUser(ctx context.Context, user *User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, verified_at, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Email, user.VerifiedAt, user.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *PGStorage) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.scanUser(ctx,
		`SELECT id, email, verified_at, created_at FROM users WHERE id = $1`, id)
}

func (s *PGStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(ctx,
		`SELECT id, email, verified_at, created_at FROM users WHERE email = $1`, email)
}

func (s *PGStorage) scanUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.VerifiedAt, &user.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *PGStorage) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verified_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PGStorage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PGStorage) StorePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_credentials (user_id, password_hash, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()`,
		userID, hash,
	)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

func (s *PGStorage) GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var hash []byte
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM user_credentials WHERE user_id = $1`, userID).
		Scan(&hash)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query password hash: %w", err)
	}
	return hash, nil
}
