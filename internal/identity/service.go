// Package identity provides login, bearer token verification and user lookups.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// Service implements identity business logic.
type Service struct {
	repo Repository
	auth Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator) *Service {
	return &Service{
		repo: repo,
		auth: auth,
	}
}

// LoginInput holds login credentials.
type LoginInput struct {
	Username string
	Password string
}

// Login verifies credentials and issues an access token.
// Unknown usernames and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Token, error) {
	user, err := s.repo.GetUserByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.IssueToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user logged in", "user_id", user.ID, "auth", s.auth.Type())
	return token, nil
}

// Authenticate resolves a bearer token to the identity of an existing user.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	userID, err := s.auth.ValidateToken(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.Identity{}, fmt.Errorf("%w: user %d no longer exists", ErrInvalidToken, userID)
		}
		return domain.Identity{}, fmt.Errorf("get user: %w", err)
	}

	return domain.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// GetUserByID retrieves a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers returns all users ordered by name.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
