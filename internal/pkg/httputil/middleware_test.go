package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]domain.Identity

func (s stubValidator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	id, ok := s[token]
	if !ok {
		return domain.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{"good": {UserID: 7, Username: "jordan", Role: domain.RoleIncidentCommander}}

	var seen domain.Identity
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic Z29vZA==", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusNoContent},
		{name: "case insensitive scheme", header: "bearer good", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, int64(7), seen.UserID)
			}
		})
	}
}

func TestGetUserID_Unauthenticated(t *testing.T) {
	assert.Zero(t, GetUserID(context.Background()))
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://console.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/incidents", nil)
	req.Header.Set("Origin", "https://console.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

var errThing = errors.New("thing not found")

func TestHandleError(t *testing.T) {
	mappings := []ErrorMapping{
		{Error: errThing, Status: http.StatusNotFound},
	}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "mapped", err: fmt.Errorf("%w: 42", errThing), wantStatus: http.StatusNotFound, wantMessage: "thing not found: 42"},
		{name: "cancelled", err: fmt.Errorf("query: %w", context.Canceled), wantStatus: http.StatusServiceUnavailable, wantMessage: "request cancelled"},
		{name: "unmapped", err: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantMessage: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			HandleError(context.Background(), rec, tt.err, mappings)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":{"message":%q}}`, tt.wantMessage), rec.Body.String())
		})
	}
}
