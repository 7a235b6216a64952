package model

import "time"

type User struct {
	ID            string            `json:"id"`
	Username      string            `json:"username"`
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	PasswordHash  string            `json:"-"`
	Roles         []string          `json:"roles"`
	Claims        map[string]string `json:"-"`
	RefreshTokens []RefreshToken    `json:"-"`
	// TokenVersion guards concurrent mutations of the refresh-token
	// sequence; the store rejects an update carrying a stale version.
	TokenVersion int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActiveRefreshToken returns the first refresh token that is neither
// revoked nor expired, in issuance order.
func (u *User) ActiveRefreshToken(now time.Time) (RefreshToken, bool) {
	for _, t := range u.RefreshTokens {
		if t.Active(now) {
			return t, true
		}
	}
	return RefreshToken{}, false
}

func (u *User) FindRefreshToken(token string) (int, bool) {
	for i, t := range u.RefreshTokens {
		if t.Token == token {
			return i, true
		}
	}
	return -1, false
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type RefreshToken struct {
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the token can still authenticate a refresh:
// never revoked and not yet past its expiry.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type AuthClaims struct {
	UserID   string   `json:"uid"`
	Username string   `json:"sub"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	TokenID  string   `json:"jti"`
}

func (c *AuthClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type AuthUser struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}
