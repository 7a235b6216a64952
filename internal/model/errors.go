package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrDuplicateUsername  = errors.New("username is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInactive = errors.New("token inactive")

	// Role related errors
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleAlreadyAssigned = errors.New("role already assigned")

	// Concurrency: an UpdateUser lost a compare-and-swap on the
	// refresh-token sequence and must be retried with fresh state.
	ErrConcurrentUpdate = errors.New("concurrent user update")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
