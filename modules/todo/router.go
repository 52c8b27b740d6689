package todo

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskgate/core"
	"github.com/dmitrymomot/taskgate/modules/auth"
	"github.com/dmitrymomot/taskgate/modules/billing"
	"github.com/dmitrymomot/taskgate/pkg/jwt"
)

// Router mounts the task endpoints. Everything here sits behind both the
// bearer token check and the subscription gate: tasks are the paid feature.
func Router(svc *Service, tokens *jwt.Service, billingSvc *billing.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(jwt.Middleware(tokens))
	r.Use(billing.RequireSubscription(billingSvc))

	r.Get("/", handleList(svc))
	r.Post("/", handleCreate(svc))
	r.Post("/{taskID}/toggle", handleToggle(svc))
	r.Patch("/{taskID}", handleUpdateText(svc))
	r.Delete("/{taskID}", handleDelete(svc))

	return r
}

func ownerAndTask(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, core.ErrUnauthorized
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, core.ErrNotFound
	}
	return ownerID, taskID, nil
}

func handleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		tasks, err := svc.List(r.Context(), ownerID)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		core.JSON(w, http.StatusOK, tasks)
	}
}

func handleCreate(svc *Service) http.HandlerFunc {
	type request struct {
		Text string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			core.JSONError(w, core.ErrUnauthorized)
			return
		}

		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		task, err := svc.Create(r.Context(), ownerID, req.Text)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}
		core.JSON(w, http.StatusCreated, task)
	}
}

func handleToggle(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, taskID, err := ownerAndTask(r)
		if err != nil {
			core.JSONError(w, err)
			return
		}

		task, err := svc.Toggle(r.Context(), ownerID, taskID)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}
		core.JSON(w, http.StatusOK, task)
	}
}

func handleUpdateText(svc *Service) http.HandlerFunc {
	type request struct {
		Text string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, taskID, err := ownerAndTask(r)
		if err != nil {
			core.JSONError(w, err)
			return
		}

		var req request
		if err := core.DecodeJSON(r, &req); err != nil {
			core.JSONError(w, err)
			return
		}

		task, err := svc.UpdateText(r.Context(), ownerID, taskID, req.Text)
		if err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}
		core.JSON(w, http.StatusOK, task)
	}
}

func handleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, taskID, err := ownerAndTask(r)
		if err != nil {
			core.JSONError(w, err)
			return
		}

		if err := svc.Delete(r.Context(), ownerID, taskID); err != nil {
			core.JSONError(w, mapServiceError(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return core.ErrNotFound
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrTextTooLong):
		return core.NewHTTPError(http.StatusBadRequest, "invalid_task_text")
	default:
		return err
	}
}
