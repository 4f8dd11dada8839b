package identity

import (
	"context"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
)

// Repository defines the interface for user storage.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Token is an issued bearer access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator issues and verifies bearer tokens.
type Authenticator interface {
	IssueToken(ctx context.Context, user *domain.User) (*Token, error)
	// ValidateToken returns the user ID carried by a valid, unexpired token.
	ValidateToken(ctx context.Context, token string) (int64, error)
	Type() string
}
