package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doFail(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, Fail(c, zerolog.Nop(), err))
	return rec
}

func TestFail_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{Validation("invalidFields", map[string][]string{"name": {"required"}}), http.StatusBadRequest, "validation"},
		{Conflict("staleVersion"), http.StatusConflict, "conflict"},
		{NotFound("recordNotFound"), http.StatusNotFound, "notFound"},
		{Unauthenticated(), http.StatusUnauthorized, "unauthenticated"},
		{errors.New("pool exhausted"), http.StatusInternalServerError, "server"},
	}

	for _, tt := range tests {
		rec := doFail(t, tt.err)
		assert.Equal(t, tt.status, rec.Code)

		var body struct {
			Error struct {
				Type       string `json:"type"`
				MessageKey string `json:"messageKey"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.kind, body.Error.Type)
		assert.NotEmpty(t, body.Error.MessageKey)
	}
}

func TestFail_ServerErrorHidesCause(t *testing.T) {
	rec := doFail(t, errors.New("password=hunter2 leaked in message"))

	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "serverError")
}

func TestFail_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("update note: %w", Conflict("staleVersion"))
	rec := doFail(t, wrapped)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOK_Envelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, OK(c, http.StatusOK, map[string]int{"id": 7}))

	var body map[string]map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body["data"]["id"])
}
