package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskgate/pkg/jwt"
)

type sessionClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid signing key", func(t *testing.T) {
		t.Parallel()
		service, err := jwt.New([]byte("secret"))
		require.NoError(t, err)
		require.NotNil(t, service)
	})

	t.Run("empty signing key", func(t *testing.T) {
		t.Parallel()
		service, err := jwt.New(nil)
		require.ErrorIs(t, err, jwt.ErrMissingSigningKey)
		require.Nil(t, service)
	})
}

func TestGenerateParse(t *testing.T) {
	t.Parallel()

	service, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		token, err := service.Generate(sessionClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-1",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
			Email: "user@example.com",
		})
		require.NoError(t, err)

		var parsed sessionClaims
		require.NoError(t, service.Parse(token, &parsed))
		assert.Equal(t, "user-1", parsed.Subject)
		assert.Equal(t, "user@example.com", parsed.Email)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		t.Parallel()
		token, err := service.Generate(sessionClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-1",
				ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			},
		})
		require.NoError(t, err)

		var parsed sessionClaims
		assert.ErrorIs(t, service.Parse(token, &parsed), jwt.ErrExpiredToken)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		t.Parallel()
		token, err := service.Generate(sessionClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-1"},
		})
		require.NoError(t, err)

		other, err := jwt.NewFromString("another-key")
		require.NoError(t, err)

		var parsed sessionClaims
		assert.ErrorIs(t, other.Parse(token, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		t.Parallel()
		token, err := service.Generate(sessionClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-1"},
		})
		require.NoError(t, err)

		var parsed sessionClaims
		assert.Error(t, service.Parse(token+"x", &parsed))
	})

	t.Run("garbage input rejected", func(t *testing.T) {
		t.Parallel()
		var parsed sessionClaims
		assert.ErrorIs(t, service.Parse("not-a-token", &parsed), jwt.ErrInvalidToken)
	})
}
