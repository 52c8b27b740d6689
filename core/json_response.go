package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes v as a JSON response with the given status code.
// Encoding errors are silently dropped: headers are already written by the
// time encoding fails, so there is nothing useful left to send.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes err as a JSON error response. HTTPError values carry their
// own status code; anything else becomes a 500 with the error message hidden
// behind a generic key so internal details never leak to clients.
func JSONError(w http.ResponseWriter, err error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		JSON(w, httpErr.Code, ErrorResponse{Error: httpErr.Key})
		return
	}
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrInternalServerError.Key})
}

// DecodeJSON parses the request body into v, limiting the body size to guard
// against oversized payloads. Returns ErrBadRequest on malformed input.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
