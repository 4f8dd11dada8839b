// Package incidents implements the incident lifecycle, RCA gating and SLA views.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/incident-console/internal/catalog"
	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/identity"
	"github.com/bissquit/incident-console/internal/sla"
	"github.com/jackc/pgx/v5"
)

const createdEventBody = "Incident created with status New"

// Service implements incident business logic.
type Service struct {
	repo     Repository
	catalog  CatalogReader
	users    UserReader
	resolver *sla.Resolver
	renderer *ReportRenderer
	now      func() time.Time
}

// NewService creates a new incident service.
func NewService(repo Repository, catalogReader CatalogReader, users UserReader, resolver *sla.Resolver) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalogReader,
		users:    users,
		resolver: resolver,
		renderer: NewReportRenderer(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title       string
	Description string
	Severity    domain.Severity
	ServiceID   int64
	AssigneeID  *int64
}

// TransitionInput holds data for a status transition.
type TransitionInput struct {
	IncidentID int64
	Status     domain.IncidentStatus
	Note       string
}

// RCAInput holds the four RCA fields. Empty values are accepted here and
// only rejected when the incident is closed.
type RCAInput struct {
	RootCause           string
	ContributingFactors string
	CorrectiveActions   string
	PreventionActions   string
}

// IncidentView is an incident with its derived SLA state.
type IncidentView struct {
	domain.Incident
	sla.State
}

// IncidentDetail is the full incident page.
type IncidentDetail struct {
	IncidentView
	ServiceName string                  `json:"service_name"`
	Events      []*domain.IncidentEvent `json:"events"`
	Runbooks    []domain.Runbook        `json:"runbooks"`
	RCA         *domain.RCA             `json:"rca"`
}

// CreateIncident creates an incident in status New and records the creation event.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput, actorID int64) (*IncidentView, error) {
	service, err := s.catalog.GetService(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrServiceNotFound, input.ServiceID)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	if input.AssigneeID != nil {
		if _, err := s.users.GetUserByID(ctx, *input.AssigneeID); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrAssigneeNotFound, *input.AssigneeID)
			}
			return nil, fmt.Errorf("get assignee: %w", err)
		}
	}

	now := s.now()
	incident := &domain.Incident{
		Title:         input.Title,
		Description:   input.Description,
		Severity:      input.Severity,
		Status:        domain.IncidentStatusNew,
		ServiceID:     input.ServiceID,
		AssigneeID:    input.AssigneeID,
		CreatedAt:     now,
		ServiceName:   service.Name,
		ServicePolicy: service.SLAPolicy,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	event := &domain.IncidentEvent{
		IncidentID: incident.ID,
		Type:       domain.EventTypeStatusChange,
		Body:       createdEventBody,
		CreatedBy:  &actorID,
		CreatedAt:  now,
	}
	if err := s.repo.CreateEventTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.view(incident), nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id int64) (*IncidentView, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(incident), nil
}

// ListIncidents retrieves incidents with optional filters, newest first.
func (s *Service) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*IncidentView, error) {
	list, err := s.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	views := make([]*IncidentView, 0, len(list))
	for _, incident := range list {
		views = append(views, s.view(incident))
	}
	return views, nil
}

// GetIncidentDetail retrieves an incident with its timeline, runbooks and RCA.
func (s *Service) GetIncidentDetail(ctx context.Context, id int64) (*IncidentDetail, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	runbooks, err := s.catalog.ListRunbooksForService(ctx, incident.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list runbooks: %w", err)
	}

	rca, err := s.getRCA(ctx, id)
	if err != nil {
		return nil, err
	}

	return &IncidentDetail{
		IncidentView: *s.view(incident),
		ServiceName:  serviceName(incident),
		Events:       events,
		Runbooks:     runbooks,
		RCA:          rca,
	}, nil
}

// TransitionStatus applies a status transition atomically. The incident row
// stays locked from the read until commit, so concurrent transitions on the
// same incident are serialized.
func (s *Service) TransitionStatus(ctx context.Context, input TransitionInput, actorID int64) (*IncidentView, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	incident, err := s.repo.GetIncidentForUpdateTx(ctx, tx, input.IncidentID)
	if err != nil {
		return nil, err
	}

	var rca *domain.RCA
	if input.Status == domain.IncidentStatusClosed {
		rca, err = s.repo.GetRCATx(ctx, tx, input.IncidentID)
		if err != nil && !errors.Is(err, ErrRCANotFound) {
			return nil, fmt.Errorf("get rca: %w", err)
		}
	}

	from := incident.Status
	now := s.now()
	if err := ApplyTransition(incident, input.Status, rca, now); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	event := &domain.IncidentEvent{
		IncidentID: incident.ID,
		Type:       domain.EventTypeStatusChange,
		Body:       statusChangeBody(input.Status, input.Note),
		CreatedBy:  &actorID,
		CreatedAt:  now,
	}
	if err := s.repo.CreateEventTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	recordTransition(from, incident.Status)
	return s.view(incident), nil
}

// AddComment appends a comment to the incident timeline.
func (s *Service) AddComment(ctx context.Context, incidentID int64, body string, actorID int64) (*IncidentDetail, error) {
	event := &domain.IncidentEvent{
		IncidentID: incidentID,
		Type:       domain.EventTypeComment,
		Body:       body,
		CreatedBy:  &actorID,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return s.GetIncidentDetail(ctx, incidentID)
}

// ApplyRunbookStep records that a step of one of the service's runbooks was applied.
func (s *Service) ApplyRunbookStep(ctx context.Context, incidentID, runbookID int64, stepIndex int, actorID int64) (*IncidentDetail, error) {
	incident, err := s.repo.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	runbook, err := s.catalog.GetRunbook(ctx, runbookID)
	if err != nil {
		if errors.Is(err, catalog.ErrRunbookNotFound) {
			return nil, ErrRunbookNotFound
		}
		return nil, fmt.Errorf("get runbook: %w", err)
	}
	if runbook.ServiceID != incident.ServiceID {
		return nil, ErrRunbookNotFound
	}

	if stepIndex < 0 || stepIndex >= len(runbook.Steps) {
		return nil, fmt.Errorf("%w: invalid runbook step index", ErrInvalidInput)
	}

	event := &domain.IncidentEvent{
		IncidentID: incidentID,
		Type:       domain.EventTypeRunbookStep,
		Body:       fmt.Sprintf("Applied runbook '%s' step %d: %s", runbook.Title, stepIndex+1, runbook.Steps[stepIndex]),
		CreatedBy:  &actorID,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	return s.GetIncidentDetail(ctx, incidentID)
}

// UpsertRCA creates the incident's RCA or overwrites all of its fields.
func (s *Service) UpsertRCA(ctx context.Context, incidentID int64, input RCAInput) (*domain.RCA, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	// Lock the incident so an upsert cannot interleave with a closure check.
	if _, err := s.repo.GetIncidentForUpdateTx(ctx, tx, incidentID); err != nil {
		return nil, err
	}

	rca := &domain.RCA{
		IncidentID:          incidentID,
		RootCause:           input.RootCause,
		ContributingFactors: input.ContributingFactors,
		CorrectiveActions:   input.CorrectiveActions,
		PreventionActions:   input.PreventionActions,
	}
	if err := s.repo.UpsertRCATx(ctx, tx, rca); err != nil {
		return nil, fmt.Errorf("upsert rca: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return rca, nil
}

// Report renders the incident as a markdown document.
func (s *Service) Report(ctx context.Context, incidentID int64) (string, error) {
	incident, err := s.repo.GetIncident(ctx, incidentID)
	if err != nil {
		return "", err
	}

	events, err := s.repo.ListEvents(ctx, incidentID)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}

	rca, err := s.getRCA(ctx, incidentID)
	if err != nil {
		return "", err
	}

	return s.renderer.Render(ReportData{
		Incident:    s.view(incident),
		ServiceName: serviceName(incident),
		Events:      events,
		RCA:         rca,
	})
}

// Stats computes aggregate metrics across all incidents.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	list, err := s.repo.ListIncidents(ctx, IncidentFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list incidents: %w", err)
	}
	return ComputeStats(list, s.resolver), nil
}

// ListBreachedOpenIncidents returns open incidents whose SLA deadline has passed.
func (s *Service) ListBreachedOpenIncidents(ctx context.Context) ([]*IncidentView, error) {
	open, err := s.ListIncidents(ctx, IncidentFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}

	breached := make([]*IncidentView, 0)
	for _, v := range open {
		if v.Breached {
			breached = append(breached, v)
		}
	}
	return breached, nil
}

// RecordBreach appends an sla_breach event unless one already exists or the
// incident is no longer breached. Returns true if an event was written.
func (s *Service) RecordBreach(ctx context.Context, incidentID int64) (bool, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	incident, err := s.repo.GetIncidentForUpdateTx(ctx, tx, incidentID)
	if err != nil {
		return false, err
	}

	now := s.now()
	status := s.resolver.Evaluate(incident, now)
	if !status.Breached {
		return false, nil
	}

	exists, err := s.repo.HasEventTx(ctx, tx, incidentID, domain.EventTypeSLABreach)
	if err != nil {
		return false, fmt.Errorf("check breach event: %w", err)
	}
	if exists {
		return false, nil
	}

	event := &domain.IncidentEvent{
		IncidentID: incidentID,
		Type:       domain.EventTypeSLABreach,
		Body: fmt.Sprintf("SLA breached: %dh budget for %s expired at %s",
			status.Hours, incident.Severity, status.Deadline.Format(time.RFC3339)),
		CreatedAt: now,
	}
	if err := s.repo.CreateEventTx(ctx, tx, event); err != nil {
		return false, fmt.Errorf("create event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

func (s *Service) view(incident *domain.Incident) *IncidentView {
	return &IncidentView{
		Incident: *incident,
		State:    s.resolver.Evaluate(incident, s.now()),
	}
}

func (s *Service) getRCA(ctx context.Context, incidentID int64) (*domain.RCA, error) {
	rca, err := s.repo.GetRCA(ctx, incidentID)
	if err != nil {
		if errors.Is(err, ErrRCANotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rca: %w", err)
	}
	return rca, nil
}

func serviceName(incident *domain.Incident) string {
	if incident.ServiceName == "" {
		return "Unknown"
	}
	return incident.ServiceName
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
