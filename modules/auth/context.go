package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskgate/pkg/jwt"
)

// UserIDFromContext extracts the authenticated user's identifier from the
// claims the jwt middleware stored. Only session tokens carry an identity;
// verification tokens are rejected even though their signature is valid.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	if iss, _ := claims["iss"].(string); iss != SubjectSession {
		return uuid.Nil, false
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
