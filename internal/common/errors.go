// Package common defines shared constants and sentinel errors used across
// FileVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrorDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorMalformed    = errors.New("malformed input")

	// Credential errors.
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrTwoFactorRequired    = errors.New("two-factor authentication required")
	ErrorInvalidTOTPCode    = errors.New("invalid two-factor code")

	// Session token errors (invalid/malformed vs expired).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Share-link lifecycle errors.
	ErrorShareLinkExpired = errors.New("share link expired")
	ErrorQuotaExceeded    = errors.New("download quota exceeded")

	// Envelope decryption failure. Deliberately a single error for every
	// crypto failure mode so responses do not leak which part was wrong.
	ErrorAuthenticationFailed = errors.New("decryption failed")
)
