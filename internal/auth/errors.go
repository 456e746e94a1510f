package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown identifiers and wrong secrets.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers missing, malformed, tampered and expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is authenticated but not permitted.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountNotFound is returned by AccountLookup implementations for unknown identifiers.
	ErrAccountNotFound = errors.New("account not found")
	// ErrMissingSigningKey is a startup fault.
	ErrMissingSigningKey = errors.New("jwt signing key is required")
)
