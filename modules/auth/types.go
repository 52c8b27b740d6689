package auth

import (
	"time"

	"github.com/google/uuid"
)

// Token subjects used in JWT tokens issued by this module.
const (
	SubjectSession     = "session"
	SubjectEmailVerify = "email_verify"
)

// User is the account projection exposed to the rest of the application.
// VerifiedAt is nil until the user confirms their email address.
type User struct {
	ID         uuid.UUID
	Email      string
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// IsVerified reports whether the account carries a verification timestamp.
// Safe to call on a nil user: an absent account is simply not verified.
func (u *User) IsVerified() bool {
	return u != nil && u.VerifiedAt != nil
}
