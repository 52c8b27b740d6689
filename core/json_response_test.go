package core_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskgate/core"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	core.JSON(rec, http.StatusCreated, map[string]string{"url": "https://checkout.example.com"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"url":"https://checkout.example.com"}`, rec.Body.String())
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error carries its status", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		core.JSONError(rec, core.ErrUnauthorized)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})

	t.Run("unknown error becomes opaque 500", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		core.JSONError(rec, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"buy milk"}`))

		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, core.DecodeJSON(req, &body))
		assert.Equal(t, "buy milk", body.Text)
	})

	t.Run("malformed body maps to bad request", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

		var body map[string]any
		err := core.DecodeJSON(req, &body)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrBadRequest)
	})
}
