package catalog

import (
	"context"
	"fmt"

	"github.com/bissquit/incident-console/internal/domain"
)

// Service provides read access to services and their runbooks.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListServices returns all services ordered by name.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// GetService retrieves a service by ID.
func (s *Service) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	return s.repo.GetService(ctx, id)
}

// ListRunbooks returns runbooks ordered by title, optionally for one service.
func (s *Service) ListRunbooks(ctx context.Context, filter RunbookFilter) ([]domain.Runbook, error) {
	runbooks, err := s.repo.ListRunbooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list runbooks: %w", err)
	}
	return runbooks, nil
}

// ListRunbooksForService returns the runbooks attached to a service.
func (s *Service) ListRunbooksForService(ctx context.Context, serviceID int64) ([]domain.Runbook, error) {
	return s.ListRunbooks(ctx, RunbookFilter{ServiceID: &serviceID})
}

// GetRunbook retrieves a runbook by ID.
func (s *Service) GetRunbook(ctx context.Context, id int64) (*domain.Runbook, error) {
	return s.repo.GetRunbook(ctx, id)
}
