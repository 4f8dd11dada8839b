// Package jwt implements bearer access tokens as HS256-signed JWTs.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "incident-console"

// Config contains JWT authenticator configuration.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

type claims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator implements identity.Authenticator with signed JWTs.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: cfg.AccessTokenDuration,
		now:      time.Now,
	}
}

// Type returns the authenticator type.
func (a *Authenticator) Type() string {
	return "jwt"
}

// IssueToken signs an access token for user.
func (a *Authenticator) IssueToken(_ context.Context, user *domain.User) (*identity.Token, error) {
	now := a.now()
	expiresAt := now.Add(a.duration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &identity.Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the subject user ID.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(_ *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: token expired", identity.ErrInvalidToken)
		}
		return 0, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return 0, identity.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed subject", identity.ErrInvalidToken)
	}
	return userID, nil
}
