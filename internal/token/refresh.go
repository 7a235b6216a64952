package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"go-auth-service/internal/model"
)

const refreshTokenBytes = 32

// RefreshManager mints opaque refresh tokens. Tokens are never edited
// after creation except to set their revocation timestamp exactly once;
// rotation is always revoke-then-append.
type RefreshManager struct {
	ttl time.Duration
}

func NewRefreshManager(ttl time.Duration) *RefreshManager {
	return &RefreshManager{ttl: ttl}
}

func (m *RefreshManager) TTL() time.Duration {
	return m.ttl
}

// Generate produces a 256-bit random opaque token valid from now until
// now plus the configured TTL.
func (m *RefreshManager) Generate(now time.Time) (model.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return model.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return model.RefreshToken{
		Token:     base64.StdEncoding.EncodeToString(buf),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}, nil
}
