package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateRefreshToken(t *testing.T) {
	manager := NewRefreshManager(240 * time.Hour)
	now := time.Now().UTC()

	token, err := manager.Generate(now)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token.Token)
	require.NoError(t, err)
	require.Len(t, raw, refreshTokenBytes)

	require.Equal(t, now, token.CreatedAt)
	require.Equal(t, now.Add(240*time.Hour), token.ExpiresAt)
	require.Nil(t, token.RevokedAt)
	require.True(t, token.Active(now))
}

func TestGeneratedTokensAreUnique(t *testing.T) {
	manager := NewRefreshManager(time.Hour)
	now := time.Now().UTC()

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		token, err := manager.Generate(now)
		require.NoError(t, err)
		_, dup := seen[token.Token]
		require.False(t, dup)
		seen[token.Token] = struct{}{}
	}
}

func TestActiveDerivation(t *testing.T) {
	manager := NewRefreshManager(time.Hour)
	now := time.Now().UTC()

	token, err := manager.Generate(now)
	require.NoError(t, err)

	require.True(t, token.Active(now))
	require.False(t, token.Active(now.Add(time.Hour)), "expired token is not active")

	revokedAt := now.Add(time.Minute)
	token.RevokedAt = &revokedAt
	require.False(t, token.Active(now.Add(2*time.Minute)), "revoked token is not active")
}
