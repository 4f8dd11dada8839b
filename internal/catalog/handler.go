// Package catalog provides HTTP handlers and read access to services and runbooks.
package catalog

import (
	"net/http"
	"strconv"

	"github.com/bissquit/incident-console/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/runbooks", h.ListRunbooks)
}

// ListServices handles GET /services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// ListRunbooks handles GET /runbooks request.
func (h *Handler) ListRunbooks(w http.ResponseWriter, r *http.Request) {
	filter := RunbookFilter{}

	if raw := r.URL.Query().Get("service_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid service_id")
			return
		}
		filter.ServiceID = &id
	}

	runbooks, err := h.service.ListRunbooks(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, runbooks)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrRunbookNotFound, Status: http.StatusNotFound},
}
