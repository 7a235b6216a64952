package repository

import (
	"context"
	"time"

	"go-auth-service/internal/model"
)

// CredentialStore is the persistence and identity boundary the auth
// service works against. Implementations must treat UpdateUser as an
// atomic compare-and-swap on the user's refresh-token sequence: an
// update carrying a stale TokenVersion fails with
// model.ErrConcurrentUpdate and the caller retries with fresh state.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	// FindByRefreshToken resolves the user owning a refresh token by
	// exact token-string match, regardless of the token's state.
	FindByRefreshToken(ctx context.Context, token string) (model.User, error)

	VerifyPassword(user model.User, password string) bool
	// CreateUser persists the record with its initial roles in one
	// atomic write; email and username uniqueness are checked inside.
	CreateUser(ctx context.Context, user model.User, password string) (model.User, error)
	// UpdateUser persists the user's refresh-token sequence in a single
	// atomic write, guarded by TokenVersion.
	UpdateUser(ctx context.Context, user model.User) error

	RoleExists(ctx context.Context, role string) (bool, error)
	AddRoleToUser(ctx context.Context, userID string, role string) error

	// PruneRefreshTokens deletes tokens that were revoked and expired
	// before the cutoff. Active or recently revoked tokens are kept so
	// rotation-reuse detection retains its history.
	PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}
