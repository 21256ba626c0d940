// Package common defines sentinel errors and small helpers shared by the
// server packages. Callers should match errors with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Credential store errors.
	ErrorConflict           = errors.New("already exists")
	ErrorPreconditionFailed = errors.New("precondition failed")
	ErrorPersistence        = errors.New("persistence error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token, wrong token kind).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
