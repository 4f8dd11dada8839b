package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(secret string) *Authenticator {
	return NewAuthenticator(Config{SecretKey: secret, AccessTokenDuration: time.Hour})
}

func TestIssueAndValidate(t *testing.T) {
	// Arrange
	auth := newTestAuthenticator("secret")
	user := &domain.User{ID: 12, Username: "morgan", Role: domain.RoleManager}

	// Act
	token, err := auth.IssueToken(context.Background(), user)
	require.NoError(t, err)
	userID, err := auth.ValidateToken(context.Background(), token.AccessToken)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(12), userID)
	assert.Equal(t, "bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)
}

func TestValidateToken_Rejects(t *testing.T) {
	user := &domain.User{ID: 1, Username: "avery"}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := newTestAuthenticator("one").IssueToken(context.Background(), user)
		require.NoError(t, err)

		_, err = newTestAuthenticator("two").ValidateToken(context.Background(), token.AccessToken)

		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		auth := newTestAuthenticator("secret")
		auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := auth.IssueToken(context.Background(), user)
		require.NoError(t, err)

		auth.now = time.Now
		_, err = auth.ValidateToken(context.Background(), token.AccessToken)

		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := newTestAuthenticator("secret").ValidateToken(context.Background(), "not-a-jwt")

		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})
}
