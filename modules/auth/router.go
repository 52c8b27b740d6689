package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskgate/core"
	"github.com/dmitrymomot/taskgate/pkg/jwt"
)

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:       u.ID.String(),
		Email:    u.Email,
		Verified: u.IsVerified(),
	}
}

// Router mounts the authentication endpoints. All endpoints are public except
// GET /me, which requires a valid bearer token.
func Router(svc *Service, tokens *jwt.Service) http.Handler {
	r := chi.NewRouter()

	r.Post("/signup", handleSignup(svc))
	r.Post("/signin", handleSignin(svc))
	r.Post("/verify", handleVerify(svc))
	r.Post("/resend", handleResend(svc))

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(tokens))
		r.Get("/me", handleMe(svc))
	})

	return r
}

func handleSignup(svc *Service) http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		user, err := svc.Register(r.Context(), req.Email, req.Password)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}

		core.JSON(w, http.StatusCreated, toUserResponse(user))
	}
}

func handleSignin(svc *Service) http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		user, token, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}

		core.JSON(w, http.StatusOK, response{Token: token, User: toUserResponse(user)})
	}
}

func handleVerify(svc *Service) http.HandlerFunc {
	type request struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		user, err := svc.VerifyEmail(r.Context(), req.Token)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}

		core.JSON(w, http.StatusOK, toUserResponse(user))
	}
}

func handleResend(svc *Service) http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		if err := svc.ResendVerification(r.Context(), req.Email); err != nil {
			core.JSONError(w, err)
			return
		}

		core.JSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

func handleMe(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		user, err := svc.User(r.Context(), userID)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}

		core.JSON(w, http.StatusOK, toUserResponse(user))
	}
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		return core.NewHTTPError(http.StatusConflict, "email_already_exists")
	case errors.Is(err, ErrInvalidEmail):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "invalid_email")
	case errors.Is(err, ErrWeakPassword):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "weak_password")
	case errors.Is(err, ErrInvalidCredentials):
		return core.NewHTTPError(http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, ErrTokenInvalid):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "invalid_token")
	case errors.Is(err, ErrUserNotFound):
		return core.ErrNotFound
	default:
		return err
	}
}
