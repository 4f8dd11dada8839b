// Package postgres provides PostgreSQL implementation of incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/incidents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

// querier is an interface for database operations that both *pgxpool.Pool and pgx.Tx implement.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `
	i.id, i.title, i.description, i.severity, i.status, i.service_id, i.assignee_id,
	i.created_at, i.acknowledged_at, i.resolved_at, i.closed_at,
	COALESCE(s.name, ''), COALESCE(s.sla_policy, '{}'::jsonb)
`

const incidentFrom = `
	FROM incidents i
	LEFT JOIN services s ON s.id = i.service_id
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&inc.Severity,
		&inc.Status,
		&inc.ServiceID,
		&inc.AssigneeID,
		&inc.CreatedAt,
		&inc.AcknowledgedAt,
		&inc.ResolvedAt,
		&inc.ClosedAt,
		&inc.ServiceName,
		&inc.ServicePolicy,
	)
	if err != nil {
		return nil, err
	}

	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.AcknowledgedAt = utcPtr(inc.AcknowledgedAt)
	inc.ResolvedAt = utcPtr(inc.ResolvedAt)
	inc.ClosedAt = utcPtr(inc.ClosedAt)
	return &inc, nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id int64) (*domain.Incident, error) {
	return r.getIncident(ctx, r.db, id, false)
}

// GetIncidentForUpdateTx retrieves an incident and locks its row until tx ends.
func (r *Repository) GetIncidentForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*domain.Incident, error) {
	return r.getIncident(ctx, tx, id, true)
}

func (r *Repository) getIncident(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Incident, error) {
	query := "SELECT " + incidentColumns + incidentFrom + " WHERE i.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF i"
	}

	inc, err := scanIncident(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// ListIncidents retrieves incidents with optional filters, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]*domain.Incident, error) {
	query := "SELECT " + incidentColumns + incidentFrom + " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND i.status = $%d", argNum)
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Severity != nil {
		query += fmt.Sprintf(" AND i.severity = $%d", argNum)
		args = append(args, *filter.Severity)
		argNum++
	}

	if filter.ServiceID != nil {
		query += fmt.Sprintf(" AND i.service_id = $%d", argNum)
		args = append(args, *filter.ServiceID)
		argNum++
	}

	if filter.AssigneeID != nil {
		query += fmt.Sprintf(" AND i.assignee_id = $%d", argNum)
		args = append(args, *filter.AssigneeID)
	}

	if filter.OpenOnly {
		query += " AND i.status NOT IN ('Resolved', 'Closed')"
	}

	query += " ORDER BY i.created_at DESC, i.id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	list := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		list = append(list, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return list, nil
}

// CreateIncidentTx inserts an incident within a transaction.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (title, description, severity, status, service_id, assignee_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		inc.Title,
		inc.Description,
		inc.Severity,
		inc.Status,
		inc.ServiceID,
		inc.AssigneeID,
		inc.CreatedAt,
	).Scan(&inc.ID)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// UpdateIncidentTx persists the status and lifecycle timestamps of an incident.
func (r *Repository) UpdateIncidentTx(ctx context.Context, tx pgx.Tx, inc *domain.Incident) error {
	query := `
		UPDATE incidents
		SET status = $2, acknowledged_at = $3, resolved_at = $4, closed_at = $5
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		inc.ID,
		inc.Status,
		inc.AcknowledgedAt,
		inc.ResolvedAt,
		inc.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// CreateEvent appends a timeline event.
func (r *Repository) CreateEvent(ctx context.Context, event *domain.IncidentEvent) error {
	return r.createEvent(ctx, r.db, event)
}

// CreateEventTx appends a timeline event within a transaction.
func (r *Repository) CreateEventTx(ctx context.Context, tx pgx.Tx, event *domain.IncidentEvent) error {
	return r.createEvent(ctx, tx, event)
}

func (r *Repository) createEvent(ctx context.Context, q querier, event *domain.IncidentEvent) error {
	query := `
		INSERT INTO incident_events (incident_id, type, body, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		event.IncidentID,
		event.Type,
		event.Body,
		event.CreatedBy,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == "incident_events_incident_id_fkey" {
			return incidents.ErrIncidentNotFound
		}
		return fmt.Errorf("insert incident event: %w", err)
	}
	return nil
}

// ListEvents retrieves the timeline of an incident in chronological order.
func (r *Repository) ListEvents(ctx context.Context, incidentID int64) ([]*domain.IncidentEvent, error) {
	query := `
		SELECT id, incident_id, type, body, created_by, created_at
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list incident events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.IncidentEvent, 0)
	for rows.Next() {
		var event domain.IncidentEvent
		if err := rows.Scan(
			&event.ID,
			&event.IncidentID,
			&event.Type,
			&event.Body,
			&event.CreatedBy,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan incident event: %w", err)
		}
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident events: %w", err)
	}

	return events, nil
}

// HasEventTx reports whether the incident already has an event of eventType.
func (r *Repository) HasEventTx(ctx context.Context, tx pgx.Tx, incidentID int64, eventType domain.EventType) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM incident_events WHERE incident_id = $1 AND type = $2)`

	var exists bool
	if err := tx.QueryRow(ctx, query, incidentID, eventType).Scan(&exists); err != nil {
		return false, fmt.Errorf("check incident event: %w", err)
	}
	return exists, nil
}

// GetRCA retrieves the RCA of an incident.
func (r *Repository) GetRCA(ctx context.Context, incidentID int64) (*domain.RCA, error) {
	return r.getRCA(ctx, r.db, incidentID)
}

// GetRCATx retrieves the RCA of an incident within a transaction.
func (r *Repository) GetRCATx(ctx context.Context, tx pgx.Tx, incidentID int64) (*domain.RCA, error) {
	return r.getRCA(ctx, tx, incidentID)
}

func (r *Repository) getRCA(ctx context.Context, q querier, incidentID int64) (*domain.RCA, error) {
	query := `
		SELECT id, incident_id, root_cause, contributing_factors, corrective_actions, prevention_actions
		FROM rcas
		WHERE incident_id = $1
	`
	var rca domain.RCA
	err := q.QueryRow(ctx, query, incidentID).Scan(
		&rca.ID,
		&rca.IncidentID,
		&rca.RootCause,
		&rca.ContributingFactors,
		&rca.CorrectiveActions,
		&rca.PreventionActions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrRCANotFound
		}
		return nil, fmt.Errorf("get rca: %w", err)
	}
	return &rca, nil
}

// UpsertRCATx creates the RCA of an incident or overwrites all its fields.
func (r *Repository) UpsertRCATx(ctx context.Context, tx pgx.Tx, rca *domain.RCA) error {
	query := `
		INSERT INTO rcas (incident_id, root_cause, contributing_factors, corrective_actions, prevention_actions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (incident_id) DO UPDATE SET
			root_cause = EXCLUDED.root_cause,
			contributing_factors = EXCLUDED.contributing_factors,
			corrective_actions = EXCLUDED.corrective_actions,
			prevention_actions = EXCLUDED.prevention_actions
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		rca.IncidentID,
		rca.RootCause,
		rca.ContributingFactors,
		rca.CorrectiveActions,
		rca.PreventionActions,
	).Scan(&rca.ID)
	if err != nil {
		return fmt.Errorf("upsert rca: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
