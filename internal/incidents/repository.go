package incidents

import (
	"context"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for incident storage.
type Repository interface {
	GetIncident(ctx context.Context, id int64) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error)

	CreateEvent(ctx context.Context, event *domain.IncidentEvent) error
	ListEvents(ctx context.Context, incidentID int64) ([]*domain.IncidentEvent, error)

	GetRCA(ctx context.Context, incidentID int64) (*domain.RCA, error)

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	GetIncidentForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*domain.Incident, error)
	UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	CreateEventTx(ctx context.Context, tx pgx.Tx, event *domain.IncidentEvent) error
	HasEventTx(ctx context.Context, tx pgx.Tx, incidentID int64, eventType domain.EventType) (bool, error)
	GetRCATx(ctx context.Context, tx pgx.Tx, incidentID int64) (*domain.RCA, error)
	UpsertRCATx(ctx context.Context, tx pgx.Tx, rca *domain.RCA) error
}

// IncidentFilter holds filter options for listing incidents.
type IncidentFilter struct {
	Status     *domain.IncidentStatus
	Severity   *domain.Severity
	ServiceID  *int64
	AssigneeID *int64
	OpenOnly   bool
}
