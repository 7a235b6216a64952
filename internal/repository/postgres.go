package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/model"
)

const bcryptCost = 12

// PostgresStore implements CredentialStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return s.findUser(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return s.findUser(ctx, `lower(username) = lower($1)`, strings.TrimSpace(username))
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (model.User, error) {
	return s.findUser(ctx, `id = $1`, id)
}

func (s *PostgresStore) FindByRefreshToken(ctx context.Context, token string) (model.User, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM refresh_tokens WHERE token = $1`, token).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by refresh token: %w", err)
	}

	return s.FindByID(ctx, userID)
}

func (s *PostgresStore) findUser(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, first_name, last_name, password_hash,
		        token_version, created_at, updated_at
		 FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.PasswordHash, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}

	if u.Roles, err = s.loadRoles(ctx, u.ID); err != nil {
		return model.User{}, err
	}
	if u.RefreshTokens, err = s.loadRefreshTokens(ctx, u.ID); err != nil {
		return model.User{}, err
	}

	return u, nil
}

func (s *PostgresStore) loadRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role_name FROM user_roles WHERE user_id = $1 ORDER BY assigned_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0, 2)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *PostgresStore) loadRefreshTokens(ctx context.Context, userID string) ([]model.RefreshToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token, created_at, expires_at, revoked_at
		 FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("load refresh tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]model.RefreshToken, 0)
	for rows.Next() {
		var t model.RefreshToken
		if err := rows.Scan(&t.Token, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *PostgresStore) VerifyPassword(user model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var emailTaken, usernameTaken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1)),
		        EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($2))`,
		user.Email, user.Username).Scan(&emailTaken, &usernameTaken)
	if err != nil {
		return model.User{}, fmt.Errorf("check duplicate identity: %w", err)
	}
	if emailTaken {
		return model.User{}, model.ErrDuplicateEmail
	}
	if usernameTaken {
		return model.User{}, model.ErrDuplicateUsername
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name,
		                    password_hash, token_version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.TokenVersion, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	// Initial roles land in the same transaction so registration is a
	// single atomic write.
	for _, role := range user.Roles {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_name, assigned_at)
			 SELECT $1, name, $3 FROM roles WHERE lower(name) = lower($2)`,
			user.ID, role, user.CreatedAt)
		if err != nil {
			return model.User{}, fmt.Errorf("assign initial role: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, fmt.Errorf("commit create user: %w", err)
	}

	return user, nil
}

// UpdateUser persists the refresh-token sequence in one transaction.
// The token_version CAS serializes concurrent writers on the same user:
// the loser sees zero affected rows and gets ErrConcurrentUpdate.
func (s *PostgresStore) UpdateUser(ctx context.Context, user model.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = $3
		 WHERE id = $1 AND token_version = $2`,
		user.ID, user.TokenVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.userExists(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if !exists {
			return model.ErrUserNotFound
		}
		return model.ErrConcurrentUpdate
	}

	// Tokens are append-only; the only permitted edit is setting
	// revoked_at, so the upsert touches nothing else.
	for _, t := range user.RefreshTokens {
		_, err := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (token, user_id, created_at, expires_at, revoked_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (token) DO UPDATE SET revoked_at = EXCLUDED.revoked_at
			 WHERE refresh_tokens.revoked_at IS NULL`,
			t.Token, user.ID, t.CreatedAt, t.ExpiresAt, t.RevokedAt)
		if err != nil {
			return fmt.Errorf("save refresh token: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) userExists(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RoleExists(ctx context.Context, role string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM roles WHERE lower(name) = lower($1))`,
		strings.TrimSpace(role)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AddRoleToUser(ctx context.Context, userID string, role string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_name, assigned_at)
		 SELECT $1, name, $3 FROM roles WHERE lower(name) = lower($2)
		 ON CONFLICT (user_id, role_name) DO NOTHING`,
		userID, strings.TrimSpace(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add role to user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoleAlreadyAssigned
	}
	return nil
}

func (s *PostgresStore) PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens
		 WHERE revoked_at IS NOT NULL AND revoked_at <= $1 AND expires_at <= $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
