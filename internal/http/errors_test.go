package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wisefido-casebook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, ReasonUnauthenticated},
		{"bad login", domain.ErrInvalidCredentials, http.StatusUnauthorized, ReasonInvalidCredentials},
		{"forbidden wrapped", fmt.Errorf("case x: %w", domain.ErrForbidden), http.StatusForbidden, ReasonForbidden},
		{"not found", domain.ErrNotFound, http.StatusNotFound, ReasonNotFound},
		{"duplicate", domain.ErrDuplicateEmail, http.StatusBadRequest, ReasonDuplicateEmail},
		{"no provider", domain.ErrNoProviderAvailable, http.StatusBadRequest, ReasonNoProviderAvailable},
		{"validation", domain.NewValidationError("email", "bad"), http.StatusBadRequest, ReasonValidationFailed},
		{"internal", errors.New("pq: relation \"users\" does not exist"), http.StatusInternalServerError, ReasonInternalFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), zap.NewNop(), tt.err)
			assert.Equal(t, tt.status, rec.Code)

			var res Result[any]
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, ResultError, res.Code)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotContains(t, res.Message, "pq:")
		})
	}
}

func TestReadBodyJSON(t *testing.T) {
	var out map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, readBodyJSON(req, 16, &out))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`))
	assert.ErrorIs(t, readBodyJSON(req, 16, &out), errBodyTooLarge)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	require.NoError(t, readBodyJSON(req, 16, &out))
	assert.Equal(t, float64(1), out["a"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
