package billing

import (
	"net/http"

	"github.com/dmitrymomot/taskgate/core"
	"github.com/dmitrymomot/taskgate/modules/auth"
)

// RequireSubscription gates a route group on an active subscription. It runs
// after the jwt middleware: identity comes from the verified token, never
// from the request. Non-subscribers get 402.
func RequireSubscription(svc *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
			if !info.Active {
				core.JSONError(w, core.ErrPaymentRequired)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
