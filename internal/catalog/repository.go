package catalog

import (
	"context"

	"github.com/bissquit/incident-console/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)

	ListRunbooks(ctx context.Context, filter RunbookFilter) ([]domain.Runbook, error)
	GetRunbook(ctx context.Context, id int64) (*domain.Runbook, error)
}

// RunbookFilter holds filter options for listing runbooks.
type RunbookFilter struct {
	ServiceID *int64
}
