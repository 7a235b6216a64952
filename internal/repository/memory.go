package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/model"
)

// MemoryStore is an in-process CredentialStore with the same contract
// as the Postgres store, including the TokenVersion compare-and-swap.
// It backs the unit and integration tests.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]model.User
	roles    map[string]string
	hashCost int
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		byID:     map[string]model.User{},
		roles:    map[string]string{},
		hashCost: bcrypt.MinCost,
	}
	// Same seed roles the schema bootstrap installs.
	s.roles["user"] = "User"
	s.roles["admin"] = "Admin"
	return s
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return s.find(ctx, func(u model.User) bool {
		return strings.EqualFold(u.Email, strings.TrimSpace(email))
	})
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return s.find(ctx, func(u model.User) bool {
		return strings.EqualFold(u.Username, strings.TrimSpace(username))
	})
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (model.User, error) {
	return s.find(ctx, func(u model.User) bool { return u.ID == id })
}

func (s *MemoryStore) FindByRefreshToken(ctx context.Context, token string) (model.User, error) {
	u, err := s.find(ctx, func(u model.User) bool {
		_, found := u.FindRefreshToken(token)
		return found
	})
	if err != nil {
		return model.User{}, model.ErrTokenNotFound
	}
	return u, nil
}

func (s *MemoryStore) find(ctx context.Context, match func(model.User) bool) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MemoryStore) VerifyPassword(user model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user model.User, password string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return model.User{}, err
	}
	user.PasswordHash = string(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return model.User{}, model.ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return model.User{}, model.ErrDuplicateUsername
		}
	}

	s.byID[user.ID] = cloneUser(user)
	return user, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.byID[user.ID]
	if !exists {
		return model.ErrUserNotFound
	}
	if stored.TokenVersion != user.TokenVersion {
		return model.ErrConcurrentUpdate
	}

	stored.RefreshTokens = cloneTokens(user.RefreshTokens)
	stored.TokenVersion++
	stored.UpdatedAt = time.Now().UTC()
	s.byID[user.ID] = stored
	return nil
}

func (s *MemoryStore) RoleExists(ctx context.Context, role string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.roles[strings.ToLower(strings.TrimSpace(role))]
	return exists, nil
}

func (s *MemoryStore) AddRoleToUser(ctx context.Context, userID string, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, exists := s.roles[strings.ToLower(strings.TrimSpace(role))]
	if !exists {
		return model.ErrRoleNotFound
	}

	user, exists := s.byID[userID]
	if !exists {
		return model.ErrUserNotFound
	}
	if user.HasRole(canonical) {
		return model.ErrRoleAlreadyAssigned
	}

	user.Roles = append(user.Roles, canonical)
	s.byID[userID] = user
	return nil
}

func (s *MemoryStore) PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for id, user := range s.byID {
		kept := user.RefreshTokens[:0:0]
		for _, t := range user.RefreshTokens {
			if t.RevokedAt != nil && t.RevokedAt.Before(cutoff) && t.ExpiresAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, t)
		}
		user.RefreshTokens = kept
		s.byID[id] = user
	}
	return pruned, nil
}

func cloneUser(u model.User) model.User {
	u.Roles = append([]string(nil), u.Roles...)
	u.RefreshTokens = cloneTokens(u.RefreshTokens)
	if u.Claims != nil {
		claims := make(map[string]string, len(u.Claims))
		for k, v := range u.Claims {
			claims[k] = v
		}
		u.Claims = claims
	}
	return u
}

func cloneTokens(tokens []model.RefreshToken) []model.RefreshToken {
	out := make([]model.RefreshToken, len(tokens))
	copy(out, tokens)
	for i := range out {
		if out[i].RevokedAt != nil {
			revoked := *out[i].RevokedAt
			out[i].RevokedAt = &revoked
		}
	}
	return out
}
