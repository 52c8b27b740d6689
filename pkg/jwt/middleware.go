package jwt

import (
	"net/http"
	"strings"
)

// Middleware validates bearer tokens and injects the raw token plus parsed
// claims into the request context. Requests without a valid token are
// rejected with 401 before reaching the handler.
func Middleware(service *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerTokenExtractor(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims := make(map[string]any)
			if err := service.Parse(tokenString, &claims); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			// Map claims bypass the typed Valid() hook, so check the
			// temporal claims here.
			if err := validateMapClaims(claims); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := SetClaims(SetToken(r.Context(), tokenString), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateMapClaims(claims map[string]any) error {
	std := StandardClaims{}
	if exp, ok := claims["exp"].(float64); ok {
		std.ExpiresAt = int64(exp)
	}
	if nbf, ok := claims["nbf"].(float64); ok {
		std.NotBefore = int64(nbf)
	}
	return std.Valid()
}

// BearerTokenExtractor extracts tokens from "Authorization: Bearer <token>"
// headers per RFC 6750.
func BearerTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", ErrInvalidToken
	}

	token := strings.TrimSpace(authHeader[len(prefix):])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
