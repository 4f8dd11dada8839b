package incidents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident routes. All of them require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{id}", h.GetIncident)
		r.Post("/{id}/status", h.TransitionStatus)
		r.Post("/{id}/comments", h.AddComment)
		r.Post("/{id}/apply-runbook-step", h.ApplyRunbookStep)
		r.Put("/{id}/rca", h.UpsertRCA)
		r.Get("/{id}/report.md", h.Report)
	})

	r.Get("/metrics", h.Stats)
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=5"`
	Severity    string `json:"severity" validate:"required,max=10"`
	ServiceID   int64  `json:"service_id" validate:"required,gt=0"`
	AssigneeID  *int64 `json:"assignee_id" validate:"omitempty,gt=0"`
}

// TransitionRequest represents the request body for a status transition.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=2000"`
}

// CommentRequest represents the request body for adding a comment.
type CommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// RunbookStepRequest represents the request body for applying a runbook step.
type RunbookStepRequest struct {
	RunbookID int64 `json:"runbook_id" validate:"required,gt=0"`
	StepIndex *int  `json:"step_index" validate:"required"`
}

// RCARequest represents the request body for upserting an RCA.
// Fields must be present but may be empty until the incident is closed.
type RCARequest struct {
	RootCause           *string `json:"root_cause" validate:"required"`
	ContributingFactors *string `json:"contributing_factors" validate:"required"`
	CorrectiveActions   *string `json:"corrective_actions" validate:"required"`
	PreventionActions   *string `json:"prevention_actions" validate:"required"`
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	list, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), CreateIncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    domain.Severity(req.Severity),
		ServiceID:   req.ServiceID,
		AssigneeID:  req.AssigneeID,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	detail, err := h.service.GetIncidentDetail(r.Context(), id)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, detail)
}

// TransitionStatus handles POST /incidents/{id}/status request.
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.TransitionStatus(r.Context(), TransitionInput{
		IncidentID: id,
		Status:     domain.IncidentStatus(req.Status),
		Note:       req.Note,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// AddComment handles POST /incidents/{id}/comments request.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	detail, err := h.service.AddComment(r.Context(), id, req.Body, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, detail)
}

// ApplyRunbookStep handles POST /incidents/{id}/apply-runbook-step request.
func (h *Handler) ApplyRunbookStep(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	var req RunbookStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	detail, err := h.service.ApplyRunbookStep(r.Context(), id, req.RunbookID, *req.StepIndex, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, detail)
}

// UpsertRCA handles PUT /incidents/{id}/rca request.
func (h *Handler) UpsertRCA(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	var req RCARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	rca, err := h.service.UpsertRCA(r.Context(), id, RCAInput{
		RootCause:           *req.RootCause,
		ContributingFactors: *req.ContributingFactors,
		CorrectiveActions:   *req.CorrectiveActions,
		PreventionActions:   *req.PreventionActions,
	})
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, rca)
}

// Report handles GET /incidents/{id}/report.md request.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Markdown(w, http.StatusOK, report)
}

// Stats handles GET /metrics request.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid incident id %q", ErrInvalidInput, raw)
	}
	return id, nil
}

func parseFilter(r *http.Request) (IncidentFilter, error) {
	q := r.URL.Query()
	var filter IncidentFilter

	if v := q.Get("status"); v != "" {
		status := domain.IncidentStatus(v)
		if !status.IsValid() {
			return filter, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, v)
		}
		filter.Status = &status
	}

	if v := q.Get("severity"); v != "" {
		severity := domain.Severity(v)
		filter.Severity = &severity
	}

	var err error
	if filter.ServiceID, err = parseOptionalID(q.Get("service_id"), "service_id"); err != nil {
		return filter, err
	}
	if filter.AssigneeID, err = parseOptionalID(q.Get("assignee_id"), "assignee_id"); err != nil {
		return filter, err
	}

	return filter, nil
}

func parseOptionalID(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", ErrInvalidInput, name, raw)
	}
	return &id, nil
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound, Message: ErrIncidentNotFound.Error()},
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrAssigneeNotFound, Status: http.StatusNotFound},
	{Error: ErrRunbookNotFound, Status: http.StatusNotFound, Message: ErrRunbookNotFound.Error()},
	{Error: ErrRCANotFound, Status: http.StatusNotFound, Message: ErrRCANotFound.Error()},
	{Error: ErrInvalidTransition, Status: http.StatusBadRequest},
	{Error: ErrRCARequired, Status: http.StatusBadRequest, Message: "RCA is required before closing an incident"},
	{Error: ErrRCAIncomplete, Status: http.StatusBadRequest, Message: "all RCA fields are required before closing"},
	{Error: ErrClosureBlocked, Status: http.StatusBadRequest},
	{Error: ErrInvalidInput, Status: http.StatusBadRequest},
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	httputil.HandleError(ctx, w, err, errorMappings)
}
