// Package common defines shared constants and sentinel errors used across
// the account service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.

	// ErrNoSuchEntry is returned when a lookup target does not exist.
	// The API layer maps it to a "not found" response.
	ErrNoSuchEntry = errors.New("no such entry")

	// Token lifecycle errors.

	// ErrExpiredToken means the token exists but its expiry has passed.
	// Distinct from ErrNoSuchEntry so callers can message "expired" vs "invalid".
	ErrExpiredToken = errors.New("token expired")

	// ErrResendLimitExceeded means the resend counter for a token owner has
	// passed the configured cap.
	ErrResendLimitExceeded = errors.New("resend limit exceeded")

	// Authentication errors.

	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrNotActivated          = errors.New("account not activated")

	// Service-level errors (generic/internal flow control).

	// ErrInvalidRequest wraps input validation failures so the API layer
	// can map them to a "bad request" response.
	ErrInvalidRequest = errors.New("invalid request")

	ErrInternal = errors.New("internal error")
)
