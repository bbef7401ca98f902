package auth

import (
	"errors"
	"fmt"
)

var (
	ErrTempTokenExists   = errors.New("temp login token already exists")
	ErrTempTokenNotFound = errors.New("temp login token not found or expired")
	ErrUnauthenticated   = errors.New("invalid username or access token")
	ErrInvalidUsername   = errors.New("username must be 3-32 characters of letters, digits, '_' or '-'")
	ErrIdentityMismatch  = errors.New("external identity does not match the claimed id")
	ErrAccountExists     = errors.New("username or external id already registered")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidState      = errors.New("invalid oauth state")

	// Returned by an IdentityResolver when the caller supplied a bad code or grant.
	ErrInvalidCode  = errors.New("invalid authorization code")
	ErrInvalidGrant = errors.New("invalid grant")

	// Returned by an IdentityResolver when the provider answered with a body it could not decode.
	ErrMalformedIdentity = errors.New("malformed identity response")
)

// UpstreamError reports a non-2xx answer from the identity provider.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("identity provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("identity provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsClientAuthError reports whether err was caused by the caller's credentials
// rather than by the provider or the store.
func IsClientAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidGrant) ||
		errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrInvalidState)
}
