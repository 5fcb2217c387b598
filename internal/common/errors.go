// Package common defines shared constants and sentinel errors used across
// the Lockr vault core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Cryptographic errors. ErrAuthentication means the ciphertext failed
	// its integrity check (wrong key or tampered blob) and must stay
	// distinguishable from ErrInvalidInput (malformed input, e.g. an empty
	// password or a truncated blob) so the caller can tell "wrong master
	// password" from "corrupt entry".
	ErrInvalidInput   = errors.New("invalid input")
	ErrAuthentication = errors.New("authentication failed")

	// Master-password verification failed during unlock or change.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Vault session errors. A lapsed or missing session prompts re-unlock,
	// not a hard failure.
	ErrSessionExpired = errors.New("session expired")

	// Reset-token errors. ErrTokenInvalid covers not-found, expired and
	// already-used alike so callers cannot tell which applies.
	ErrTokenInvalid      = errors.New("invalid or expired token")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Session-token errors (invalid, malformed or expired JWT).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
