package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	piazza_errors "piazza-chat/pkg/errors"
)

func signToken(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseAccessToken(t *testing.T) {
	svc := NewAuthService("test-secret")

	claims := AccessClaims{
		UserID: "11111111-1111-1111-1111-111111111111",
		Name:   "Giulia",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	id, err := svc.ParseAccessToken(signToken(t, "test-secret", claims))
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", id.UserID)
	assert.Equal(t, "Giulia", id.Name)
}

func TestParseAccessTokenRejectsBadInput(t *testing.T) {
	svc := NewAuthService("test-secret")

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.ParseAccessToken("")
		assert.ErrorIs(t, err, piazza_errors.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", AccessClaims{UserID: "u1"})
		_, err := svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, piazza_errors.ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "test-secret", AccessClaims{
			UserID: "u1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		_, err := svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, piazza_errors.ErrUnauthorized)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := signToken(t, "test-secret", AccessClaims{Name: "nobody"})
		_, err := svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, piazza_errors.ErrUnauthorized)
	})
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := Identity{UserID: "u1", Name: "Marco"}
	ctx := WithIdentityContext(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)
}
