package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-auth-service/internal/model"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/token"
)

const DefaultRole = "User"

// maxUpdateRetries bounds the optimistic-concurrency retry loop around
// refresh-token mutations. A writer that keeps losing the version CAS
// surfaces the conflict as a server error.
const maxUpdateRetries = 3

const (
	msgDuplicateEmail    = "Email is already registered"
	msgDuplicateUsername = "Username is already registered"
	msgBadCredentials    = "Email or Password is incorrect"
	msgInvalidToken      = "Invalid token"
	msgInactiveToken     = "Inactive token"
)

// AuthService orchestrates registration, login, refresh-token rotation,
// revocation and role assignment. Authentication failures come back as
// AuthResult values; returned errors mean infrastructure faults.
type AuthService struct {
	store   repository.CredentialStore
	issuer  *token.Issuer
	refresh *token.RefreshManager
}

func NewAuthService(store repository.CredentialStore, issuer *token.Issuer, refresh *token.RefreshManager) *AuthService {
	return &AuthService{store: store, issuer: issuer, refresh: refresh}
}

// Register creates the user with the default role and returns an access
// token. No refresh token is issued at registration: refresh capability
// is only established at login.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	now := time.Now().UTC()
	user := model.User{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Roles:     []string{DefaultRole},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.store.CreateUser(ctx, user, req.Password)
	if errors.Is(err, model.ErrDuplicateEmail) {
		return model.AuthFailure(msgDuplicateEmail), nil
	}
	if errors.Is(err, model.ErrDuplicateUsername) {
		return model.AuthFailure(msgDuplicateUsername), nil
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	access, err := s.issuer.Issue(created)
	if err != nil {
		return model.AuthResult{}, err
	}

	return model.AuthResult{
		Authenticated: true,
		Username:      created.Username,
		Email:         created.Email,
		Roles:         created.Roles,
		AccessToken:   access,
	}, nil
}

// Login verifies credentials and applies the refresh-token reuse
// policy: an already active refresh token is returned as is, otherwise
// a new one is appended and persisted.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthFailure(msgBadCredentials), nil
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	if !s.store.VerifyPassword(user, req.Password) {
		return model.AuthFailure(msgBadCredentials), nil
	}

	access, err := s.issuer.Issue(user)
	if err != nil {
		return model.AuthResult{}, err
	}

	result := model.AuthResult{
		Authenticated: true,
		Username:      user.Username,
		Email:         user.Email,
		Roles:         user.Roles,
		AccessToken:   access,
	}

	for attempt := 0; ; attempt++ {
		now := time.Now().UTC()

		if active, ok := user.ActiveRefreshToken(now); ok {
			result.RefreshToken = active.Token
			result.RefreshTokenExpiration = active.ExpiresAt
			return result, nil
		}

		fresh, err := s.refresh.Generate(now)
		if err != nil {
			return model.AuthResult{}, err
		}
		user.RefreshTokens = append(user.RefreshTokens, fresh)

		err = s.store.UpdateUser(ctx, user)
		if err == nil {
			result.RefreshToken = fresh.Token
			result.RefreshTokenExpiration = fresh.ExpiresAt
			return result, nil
		}
		if !errors.Is(err, model.ErrConcurrentUpdate) || attempt >= maxUpdateRetries {
			return model.AuthResult{}, err
		}

		// A concurrent login may have appended a token already; the
		// refetched state decides between reuse and another attempt.
		user, err = s.store.FindByID(ctx, user.ID)
		if err != nil {
			return model.AuthResult{}, err
		}
	}
}

// RefreshToken rotates an active refresh token: the presented token is
// revoked and its replacement appended in the same persisted write, so
// a given token string authenticates exactly one successful refresh.
func (s *AuthService) RefreshToken(ctx context.Context, tokenString string) (model.AuthResult, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return model.AuthFailure(msgInvalidToken), nil
	}

	for attempt := 0; ; attempt++ {
		user, err := s.store.FindByRefreshToken(ctx, tokenString)
		if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrUserNotFound) {
			return model.AuthFailure(msgInvalidToken), nil
		}
		if err != nil {
			return model.AuthResult{}, err
		}

		now := time.Now().UTC()
		idx, found := user.FindRefreshToken(tokenString)
		if !found {
			return model.AuthFailure(msgInvalidToken), nil
		}
		if !user.RefreshTokens[idx].Active(now) {
			return model.AuthFailure(msgInactiveToken), nil
		}

		revokedAt := now
		user.RefreshTokens[idx].RevokedAt = &revokedAt

		fresh, err := s.refresh.Generate(now)
		if err != nil {
			return model.AuthResult{}, err
		}
		user.RefreshTokens = append(user.RefreshTokens, fresh)

		if err := s.store.UpdateUser(ctx, user); err != nil {
			// A losing writer re-reads; if the competing operation
			// already rotated this token the next pass reports it
			// inactive instead of rotating twice.
			if errors.Is(err, model.ErrConcurrentUpdate) && attempt < maxUpdateRetries {
				continue
			}
			return model.AuthResult{}, err
		}

		access, err := s.issuer.Issue(user)
		if err != nil {
			return model.AuthResult{}, err
		}

		return model.AuthResult{
			Authenticated:          true,
			Username:               user.Username,
			Email:                  user.Email,
			Roles:                  user.Roles,
			AccessToken:            access,
			RefreshToken:           fresh.Token,
			RefreshTokenExpiration: fresh.ExpiresAt,
		}, nil
	}
}

// RevokeToken revokes an active refresh token outside of rotation, for
// logout and device revocation. Absent, unknown or already inactive
// tokens report false without mutating anything.
func (s *AuthService) RevokeToken(ctx context.Context, tokenString string) (bool, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return false, nil
	}

	for attempt := 0; ; attempt++ {
		user, err := s.store.FindByRefreshToken(ctx, tokenString)
		if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrUserNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		now := time.Now().UTC()
		idx, found := user.FindRefreshToken(tokenString)
		if !found || !user.RefreshTokens[idx].Active(now) {
			return false, nil
		}

		revokedAt := now
		user.RefreshTokens[idx].RevokedAt = &revokedAt

		err = s.store.UpdateUser(ctx, user)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, model.ErrConcurrentUpdate) && attempt < maxUpdateRetries {
			continue
		}
		return false, err
	}
}

// AddRole assigns an existing role to an existing user.
func (s *AuthService) AddRole(ctx context.Context, userID string, role string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	exists, err := s.store.RoleExists(ctx, role)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrRoleNotFound
	}

	for _, held := range user.Roles {
		if strings.EqualFold(held, role) {
			return model.ErrRoleAlreadyAssigned
		}
	}

	return s.store.AddRoleToUser(ctx, user.ID, role)
}

// GetUserByID serves the authenticated profile endpoint.
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}

	return model.AuthUser{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     user.Roles,
	}, nil
}

// PruneTokens deletes refresh tokens revoked and expired longer ago
// than the retention window; everything newer stays as audit trail.
func (s *AuthService) PruneTokens(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.store.PruneRefreshTokens(ctx, cutoff)
}

// ValidateAccessToken is the verification contract the HTTP middleware
// relies on: signature, issuer, audience, expiry, zero clock skew.
func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AuthClaims, error) {
	return s.issuer.Validate(tokenString)
}
