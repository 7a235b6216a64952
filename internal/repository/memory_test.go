package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

func newStoredUser(t *testing.T, store *MemoryStore, username string, email string) model.User {
	t.Helper()

	now := time.Now().UTC()
	user, err := store.CreateUser(context.Background(), model.User{
		ID:        username + "-id",
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, "pw123456")
	require.NoError(t, err)
	return user
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")

	byEmail, err := store.FindByEmail(context.Background(), "ALICE@X.COM")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byUsername, err := store.FindByUsername(context.Background(), " alice ")
	require.NoError(t, err)
	require.Equal(t, created.ID, byUsername.ID)

	byID, err := store.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = store.FindByEmail(context.Background(), "bob@x.com")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryStoreDuplicateIdentity(t *testing.T) {
	store := NewMemoryStore()
	newStoredUser(t, store, "alice", "alice@x.com")

	_, err := store.CreateUser(context.Background(), model.User{ID: "x", Username: "bob", Email: "Alice@X.com"}, "pw123456")
	require.ErrorIs(t, err, model.ErrDuplicateEmail)

	_, err = store.CreateUser(context.Background(), model.User{ID: "y", Username: "ALICE", Email: "bob@x.com"}, "pw123456")
	require.ErrorIs(t, err, model.ErrDuplicateUsername)
}

func TestMemoryStorePasswordVerification(t *testing.T) {
	store := NewMemoryStore()
	newStoredUser(t, store, "alice", "alice@x.com")

	user, err := store.FindByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	require.True(t, store.VerifyPassword(user, "pw123456"))
	require.False(t, store.VerifyPassword(user, "wrongpw"))
}

func TestMemoryStoreUpdateUserCAS(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")

	now := time.Now().UTC()
	created.RefreshTokens = append(created.RefreshTokens, model.RefreshToken{
		Token: "t1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, store.UpdateUser(context.Background(), created))

	// Same (now stale) version loses the CAS.
	err := store.UpdateUser(context.Background(), created)
	require.ErrorIs(t, err, model.ErrConcurrentUpdate)

	fresh, err := store.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, fresh.RefreshTokens, 1)
	require.Equal(t, created.TokenVersion+1, fresh.TokenVersion)

	// A writer working from fresh state succeeds.
	revoked := now
	fresh.RefreshTokens[0].RevokedAt = &revoked
	require.NoError(t, store.UpdateUser(context.Background(), fresh))
}

func TestMemoryStoreFindByRefreshToken(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")

	now := time.Now().UTC()
	created.RefreshTokens = []model.RefreshToken{{Token: "t1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}}
	require.NoError(t, store.UpdateUser(context.Background(), created))

	owner, err := store.FindByRefreshToken(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, created.ID, owner.ID)

	_, err = store.FindByRefreshToken(context.Background(), "unknown")
	require.ErrorIs(t, err, model.ErrTokenNotFound)
}

func TestMemoryStoreRoles(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")
	ctx := context.Background()

	exists, err := store.RoleExists(ctx, "admin")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.RoleExists(ctx, "wizard")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.AddRoleToUser(ctx, created.ID, "Admin"))
	require.ErrorIs(t, store.AddRoleToUser(ctx, created.ID, "admin"), model.ErrRoleAlreadyAssigned)
	require.ErrorIs(t, store.AddRoleToUser(ctx, "nope", "Admin"), model.ErrUserNotFound)
	require.ErrorIs(t, store.AddRoleToUser(ctx, created.ID, "wizard"), model.ErrRoleNotFound)

	user, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Admin"}, user.Roles)
}

func TestMemoryStorePrune(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")
	ctx := context.Background()

	now := time.Now().UTC()
	oldRevoked := now.Add(-60 * 24 * time.Hour)
	recentRevoked := now.Add(-time.Hour)
	created.RefreshTokens = []model.RefreshToken{
		{Token: "stale", CreatedAt: oldRevoked, ExpiresAt: oldRevoked.Add(time.Hour), RevokedAt: &oldRevoked},
		{Token: "recent", CreatedAt: recentRevoked, ExpiresAt: now.Add(time.Hour), RevokedAt: &recentRevoked},
		{Token: "active", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	require.NoError(t, store.UpdateUser(ctx, created))

	pruned, err := store.PruneRefreshTokens(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)

	user, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, user.RefreshTokens, 2)
	_, found := user.FindRefreshToken("stale")
	require.False(t, found)
}

func TestMemoryStoreReadsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	created := newStoredUser(t, store, "alice", "alice@x.com")
	ctx := context.Background()

	now := time.Now().UTC()
	created.RefreshTokens = []model.RefreshToken{{Token: "t1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}}
	require.NoError(t, store.UpdateUser(ctx, created))

	first, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	revoked := now
	first.RefreshTokens[0].RevokedAt = &revoked

	second, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, second.RefreshTokens[0].RevokedAt, "mutating a read result must not touch stored state")
}
