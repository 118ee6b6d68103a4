package auth

import "errors"

var (
	// ErrNotAuthenticated means no principal could be resolved for the call.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnauthorized means the principal is known but the requirement failed.
	// It is always wrapped with a specific reason string.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoOrganization means an org-scoped operation was attempted by a
	// principal without an organization.
	ErrNoOrganization = errors.New("no organization context")
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound means the session subject no longer maps to a user row.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput covers malformed role labels, emails and credentials.
	ErrInvalidInput = errors.New("invalid input")
)
