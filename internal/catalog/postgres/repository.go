// Package postgres provides PostgreSQL implementation of catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/incident-console/internal/catalog"
	"github.com/bissquit/incident-console/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements catalog.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListServices retrieves all services ordered by name.
func (r *Repository) ListServices(ctx context.Context) ([]domain.Service, error) {
	query := `
		SELECT id, name, owner_team, sla_policy
		FROM services
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var service domain.Service
		if err := rows.Scan(&service.ID, &service.Name, &service.OwnerTeam, &service.SLAPolicy); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	return services, nil
}

// GetService retrieves a service by ID.
func (r *Repository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	query := `
		SELECT id, name, owner_team, sla_policy
		FROM services
		WHERE id = $1
	`
	var service domain.Service
	err := r.db.QueryRow(ctx, query, id).Scan(&service.ID, &service.Name, &service.OwnerTeam, &service.SLAPolicy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &service, nil
}

// ListRunbooks retrieves runbooks ordered by title.
func (r *Repository) ListRunbooks(ctx context.Context, filter catalog.RunbookFilter) ([]domain.Runbook, error) {
	query := `
		SELECT id, service_id, title, steps
		FROM runbooks
	`
	args := []interface{}{}

	if filter.ServiceID != nil {
		query += " WHERE service_id = $1"
		args = append(args, *filter.ServiceID)
	}

	query += " ORDER BY title, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runbooks: %w", err)
	}
	defer rows.Close()

	runbooks := make([]domain.Runbook, 0)
	for rows.Next() {
		var runbook domain.Runbook
		if err := rows.Scan(&runbook.ID, &runbook.ServiceID, &runbook.Title, &runbook.Steps); err != nil {
			return nil, fmt.Errorf("scan runbook: %w", err)
		}
		runbooks = append(runbooks, runbook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runbooks: %w", err)
	}

	return runbooks, nil
}

// GetRunbook retrieves a runbook by ID.
func (r *Repository) GetRunbook(ctx context.Context, id int64) (*domain.Runbook, error) {
	query := `
		SELECT id, service_id, title, steps
		FROM runbooks
		WHERE id = $1
	`
	var runbook domain.Runbook
	err := r.db.QueryRow(ctx, query, id).Scan(&runbook.ID, &runbook.ServiceID, &runbook.Title, &runbook.Steps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrRunbookNotFound
		}
		return nil, fmt.Errorf("get runbook: %w", err)
	}
	return &runbook, nil
}
