// Package common defines shared constants and sentinel errors used across
// the token engine. Callers should match these values with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrPersistence wraps any storage-layer fault surfaced by the services.
	// The underlying driver error is attached as detail, never as behavior.
	ErrPersistence = errors.New("persistence failure")

	// Authentication errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")

	// Issuance errors.
	ErrInactiveUser = errors.New("cannot issue token for inactive user")

	// Token validation errors (never leaked across the service boundary).
	ErrInvalidToken = errors.New("invalid token")

	// Rotation errors.
	ErrRefreshInvalid = errors.New("refresh token invalid or expired")
	ErrUserInactive   = errors.New("user inactive, refresh token revoked")
)
