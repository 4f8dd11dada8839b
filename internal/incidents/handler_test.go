package incidents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := httputil.WithIdentity(req.Context(), domain.Identity{UserID: 100, Username: "avery"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(f.service).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message
}

func TestHandler_CreateAndTransition(t *testing.T) {
	// Arrange
	f := newFixture()
	router := newTestRouter(f)

	// Act
	rec := doRequest(t, router, http.MethodPost, "/incidents",
		`{"title":"Checkout errors","description":"5xx on checkout","severity":"SEV2","service_id":1}`)

	// Assert
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID          int64  `json:"id"`
			Status      string `json:"status"`
			SLAHours    int    `json:"sla_hours"`
			SLABreached bool   `json:"sla_breached"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "New", created.Data.Status)
	assert.Equal(t, 2, created.Data.SLAHours)

	rec = doRequest(t, router, http.MethodPost, "/incidents/1/status", `{"status":"Closed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid transition from New to Closed", errorMessage(t, rec))

	rec = doRequest(t, router, http.MethodPost, "/incidents/1/status", `{"status":"Investigating"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_ClosureMessages(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	created := f.create(t, domain.SeveritySEV3)
	_, err := f.transition(created.ID, domain.IncidentStatusInvestigating)
	require.NoError(t, err)
	_, err = f.transition(created.ID, domain.IncidentStatusResolved)
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/incidents/1/status", `{"status":"Closed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RCA is required before closing an incident", errorMessage(t, rec))

	rec = doRequest(t, router, http.MethodPut, "/incidents/1/rca",
		`{"root_cause":"x","contributing_factors":"","corrective_actions":"","prevention_actions":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/incidents/1/status", `{"status":"Closed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "all RCA fields are required before closing", errorMessage(t, rec))
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "malformed json", method: http.MethodPost, path: "/incidents", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "validation", method: http.MethodPost, path: "/incidents", body: `{"title":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown service", method: http.MethodPost, path: "/incidents", body: `{"title":"Checkout","description":"broken","severity":"SEV1","service_id":9}`, wantStatus: http.StatusNotFound},
		{name: "non numeric id", method: http.MethodGet, path: "/incidents/abc", wantStatus: http.StatusBadRequest},
		{name: "unknown incident", method: http.MethodGet, path: "/incidents/404", wantStatus: http.StatusNotFound},
		{name: "bad status filter", method: http.MethodGet, path: "/incidents?status=Escalated", wantStatus: http.StatusBadRequest},
		{name: "rca missing field", method: http.MethodPut, path: "/incidents/1/rca", body: `{"root_cause":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "runbook step missing index", method: http.MethodPost, path: "/incidents/1/apply-runbook-step", body: `{"runbook_id":10}`, wantStatus: http.StatusBadRequest},
		{name: "runbook step out of range", method: http.MethodPost, path: "/incidents/1/apply-runbook-step", body: `{"runbook_id":10,"step_index":5}`, wantStatus: http.StatusBadRequest},
		{name: "runbook of other service", method: http.MethodPost, path: "/incidents/1/apply-runbook-step", body: `{"runbook_id":20,"step_index":0}`, wantStatus: http.StatusNotFound},
		{name: "empty comment", method: http.MethodPost, path: "/incidents/1/comments", body: `{"body":""}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.create(t, domain.SeveritySEV1)
			router := newTestRouter(f)

			rec := doRequest(t, router, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_ReportAndStats(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	f.create(t, domain.SeveritySEV1)

	rec := doRequest(t, router, http.MethodGet, "/incidents/1/report.md", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Incident Report: Checkout errors"))

	rec = doRequest(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Data Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Data.TotalIncidents)
	assert.Equal(t, 1, stats.Data.OpenIncidents)
}
