package errors

import (
	"errors"
	"fmt"
)

// Shared error values for the SSO client kit. Domain packages re-export the
// values that belong to their public surface so callers can branch with
// errors.Is without importing internal packages.
var (
	// Token shape errors
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRejected  = errors.New("token rejected")

	// Acquisition errors
	ErrInteractionRequired = errors.New("interaction required")
	ErrRenewalFailed       = errors.New("token renewal failed")
	ErrNoAccount           = errors.New("no authenticated account found")

	// Request authorization errors
	ErrRetryExhausted = errors.New("authentication failed after multiple attempts")
	ErrSessionExpired = errors.New("session expired")

	// Authorization (not authentication) errors
	ErrPermissionDenied = errors.New("permission denied")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
