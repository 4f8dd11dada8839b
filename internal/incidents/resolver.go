package incidents

import (
	"context"

	"github.com/bissquit/incident-console/internal/domain"
)

// CatalogReader resolves services and runbooks referenced by incidents.
type CatalogReader interface {
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	GetRunbook(ctx context.Context, id int64) (*domain.Runbook, error)
	ListRunbooksForService(ctx context.Context, serviceID int64) ([]domain.Runbook, error)
}

// UserReader resolves incident assignees.
type UserReader interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}
