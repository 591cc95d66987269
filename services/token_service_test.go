package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	ts, err := NewTokenService("jwt-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	access, err := ts.GenerateAccessToken("user-1", "ana@example.com", "user")
	require.NoError(t, err)
	assert.Empty(t, access.TokenID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), access.ExpiresAt, 5*time.Second)

	refresh, err := ts.GenerateRefreshToken("user-1", "ana@example.com", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, refresh.TokenID)

	claims, err := ts.ValidateToken(access.Token, tokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])

	claims, err = ts.ValidateToken(refresh.Token, tokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, refresh.TokenID, claims["jti"])

	t.Run("Wrong type", func(t *testing.T) {
		_, err := ts.ValidateToken(refresh.Token, tokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Foreign secret", func(t *testing.T) {
		other, err := NewTokenService("other-secret", time.Minute, time.Hour)
		require.NoError(t, err)
		_, err = other.ValidateToken(access.Token, tokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		past, err := NewTokenService("jwt-secret", time.Minute, time.Hour)
		require.NoError(t, err)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

		stale, err := past.GenerateAccessToken("user-1", "ana@example.com", "user")
		require.NoError(t, err)
		_, err = ts.ValidateToken(stale.Token, tokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ts.ValidateToken("not-a-jwt", tokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService("", time.Minute, time.Hour)
	assert.Error(t, err)
}
