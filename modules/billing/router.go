package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskgate/core"
	"github.com/dmitrymomot/taskgate/modules/auth"
	"github.com/dmitrymomot/taskgate/pkg/jwt"
)

// Max webhook body Paddle sends is well under this.
const maxWebhookBody = 1 << 20

// Router mounts the billing endpoints. Checkout, portal, and status require
// a bearer token; the webhook authenticates by signature only.
func Router(svc *Service, tokens *jwt.Service) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(tokens))
		r.Post("/checkout", handleCheckout(svc))
		r.Post("/portal", handlePortal(svc))
		r.Post("/status", handleStatus(svc))
	})

	r.Post("/webhook", handleWebhook(svc))

	return r
}

func handleCheckout(svc *Service) http.HandlerFunc {
	type response struct {
		URL string `json:"url"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		url, err := svc.CheckoutURL(r.Context(), userID)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		core.JSON(w, http.StatusOK, response{URL: url})
	}
}

func handlePortal(svc *Service) http.HandlerFunc {
	type response struct {
		URL string `json:"url"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		url, err := svc.PortalURL(r.Context(), userID)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		core.JSON(w, http.StatusOK, response{URL: url})
	}
}

func handleStatus(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		info, err := svc.Status(r.Context(), userID)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		core.JSON(w, http.StatusOK, info)
	}
}

func handleWebhook(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			core.JSONError(w, core.ErrBadRequest)
			return
		}

		err = svc.HandleWebhook(r.Context(), payload, r.Header.Get("Paddle-Signature"))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrInvalidPayload):
			core.JSONError(w, core.ErrBadRequest)
		default:
			// Unknown customer mappings and store failures are consistency
			// bugs; surface them so the provider's delivery log shows red.
			core.JSONError(w, core.ErrInternalServerError)
		}
	}
}
