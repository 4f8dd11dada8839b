package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	services []domain.Service
	runbooks []domain.Runbook
	err      error
}

func (m *mockRepository) ListServices(_ context.Context) ([]domain.Service, error) {
	return m.services, m.err
}

func (m *mockRepository) GetService(_ context.Context, id int64) (*domain.Service, error) {
	for i := range m.services {
		if m.services[i].ID == id {
			return &m.services[i], nil
		}
	}
	return nil, ErrServiceNotFound
}

func (m *mockRepository) ListRunbooks(_ context.Context, filter RunbookFilter) ([]domain.Runbook, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]domain.Runbook, 0)
	for _, rb := range m.runbooks {
		if filter.ServiceID == nil || rb.ServiceID == *filter.ServiceID {
			result = append(result, rb)
		}
	}
	return result, nil
}

func (m *mockRepository) GetRunbook(_ context.Context, id int64) (*domain.Runbook, error) {
	for i := range m.runbooks {
		if m.runbooks[i].ID == id {
			return &m.runbooks[i], nil
		}
	}
	return nil, ErrRunbookNotFound
}

func newRouter(repo Repository) http.Handler {
	r := chi.NewRouter()
	NewHandler(NewService(repo)).RegisterRoutes(r)
	return r
}

func newRepo() *mockRepository {
	return &mockRepository{
		services: []domain.Service{
			{ID: 1, Name: "Identity Service", OwnerTeam: "Platform Identity"},
			{ID: 2, Name: "Payments API", OwnerTeam: "Core Payments", SLAPolicy: domain.SLAPolicy{domain.SeveritySEV1: 1}},
		},
		runbooks: []domain.Runbook{
			{ID: 10, ServiceID: 1, Title: "Identity Login Failure", Steps: []string{"Flush cache"}},
			{ID: 20, ServiceID: 2, Title: "Payments Timeout Mitigation", Steps: []string{"Scale workers"}},
		},
	}
}

func TestHandler_ListServices(t *testing.T) {
	// Arrange
	router := newRouter(newRepo())
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []domain.Service `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, 1, body.Data[1].SLAPolicy[domain.SeveritySEV1])
}

func TestHandler_ListRunbooks(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []int64
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantIDs: []int64{10, 20}},
		{name: "by service", query: "?service_id=2", wantStatus: http.StatusOK, wantIDs: []int64{20}},
		{name: "unknown service", query: "?service_id=99", wantStatus: http.StatusOK, wantIDs: []int64{}},
		{name: "invalid service id", query: "?service_id=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(newRepo())
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runbooks"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantIDs == nil {
				return
			}
			var body struct {
				Data []domain.Runbook `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			ids := make([]int64, 0, len(body.Data))
			for _, rb := range body.Data {
				ids = append(ids, rb.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestHandler_StorageError(t *testing.T) {
	repo := newRepo()
	repo.err = errors.New("connection reset")
	rec := httptest.NewRecorder()

	newRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestService_ListRunbooksForService(t *testing.T) {
	svc := NewService(newRepo())

	runbooks, err := svc.ListRunbooksForService(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, runbooks, 1)
	assert.Equal(t, "Identity Login Failure", runbooks[0].Title)
}
