package model

import "time"

// AuthResult is the outcome of every authentication operation. Failures
// are carried as values (Authenticated=false plus Message), never as
// errors; errors are reserved for infrastructure faults.
type AuthResult struct {
	Authenticated bool     `json:"authenticated"`
	Message       string   `json:"message,omitempty"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	AccessToken   string   `json:"access_token,omitempty"`
	// The refresh token also travels in a secure cookie; it is kept in
	// the body for non-browser clients.
	RefreshToken           string    `json:"refresh_token,omitempty"`
	RefreshTokenExpiration time.Time `json:"refresh_token_expiration,omitzero"`
}

func AuthFailure(message string) AuthResult {
	return AuthResult{Authenticated: false, Message: message}
}
