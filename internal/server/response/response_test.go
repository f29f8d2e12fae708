package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestSuccessAndFail(t *testing.T) {
	ok := Success(map[string]string{"message": "success"})
	assert.NotNil(t, ok.Data)
	assert.Nil(t, ok.Error)

	failed := Fail("TEST_ERROR", "Test error message", "Additional details")
	assert.Nil(t, failed.Data)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "TEST_ERROR", failed.Error.Code)
	assert.Equal(t, "Test error message", failed.Error.Message)
	assert.Equal(t, "Additional details", failed.Error.Details)
}

func TestJSONEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]int{"count": 42})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	// both keys are always present
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "data")
	assert.Contains(t, raw, "error")
	assert.Equal(t, "null", string(raw["error"]))
	assert.JSONEq(t, `{"count":42}`, string(raw["data"]))
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		code   string
	}{
		{"created", func(w http.ResponseWriter) { Created(w, "x") }, http.StatusCreated, ""},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad", "") }, http.StatusBadRequest, CodeBadRequest},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "no", "") }, http.StatusUnauthorized, CodeUnauthorized},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone", "") }, http.StatusNotFound, CodeNotFound},
		{"method", func(w http.ResponseWriter) { MethodNotAllowed(w, http.MethodPatch) }, http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "again", "") }, http.StatusConflict, CodeConflict},
		{"internal", func(w http.ResponseWriter) { InternalError(w, fmt.Errorf("secret")) }, http.StatusInternalServerError, CodeInternal},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "down") }, http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"timeout", func(w http.ResponseWriter) { GatewayTimeout(w, "slow") }, http.StatusGatewayTimeout, CodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)

			resp := decode(t, w)
			if tt.code == "" {
				assert.Nil(t, resp.Error)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	InternalError(w, fmt.Errorf("dsn=postgres://user:pass@db"))
	assert.NotContains(t, w.Body.String(), "postgres")
}

func TestRolledBackCarriesResult(t *testing.T) {
	w := httptest.NewRecorder()
	RolledBack(w, map[string]any{"processed": 2}, errors.NewCatastrophicError("add_vehicles", true, fmt.Errorf("boom")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRolledBack, resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "rolled back")
	assert.Equal(t, map[string]any{"processed": float64(2)}, resp.Data)
}

func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errors.NewNotFoundError("vehicle", "1HGCM82633A004352"), http.StatusNotFound, CodeNotFound},
		{"validation", errors.NewValidationError("vin", "x", "malformed"), http.StatusBadRequest, CodeBadRequest},
		{"invalid document", errors.NewInvalidDocumentError("d1", "missing VIN", nil), http.StatusBadRequest, CodeBadRequest},
		{"no rollback", errors.ErrNoRollback, http.StatusConflict, CodeConflict},
		{"catastrophic", errors.NewCatastrophicError("clear_fleet", true, fmt.Errorf("panic")), http.StatusInternalServerError, CodeRolledBack},
		{"persistence", errors.NewPersistenceError("save", "row-1", fmt.Errorf("disk full")), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"deadline", fmt.Errorf("listing: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)
			assert.Equal(t, tt.status, w.Code)

			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
