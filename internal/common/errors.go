// Package common defines shared constants and sentinel errors used across
// sealbox components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("conflict")

	// Secret-sharing errors.
	ErrInsufficientShares = errors.New("insufficient shares")

	// Envelope errors. Deliberately a single generic value: callers must not
	// be able to tell a wrong code from a corrupted envelope.
	ErrUnwrapFailed = errors.New("unwrap failed")

	// Share-token lifecycle errors.
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenRotated = errors.New("token rotated")
	ErrInvalidToken = errors.New("invalid token")

	// Letter lifecycle conflicts.
	ErrAlreadyUnlocked    = errors.New("already unlocked")
	ErrAlreadyRegenerated = errors.New("already regenerated")
)
