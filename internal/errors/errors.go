package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token service
var (
	// Issuance errors
	ErrInvalidInput = errors.New("invalid input")

	// Validation errors
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrExpired           = errors.New("token expired")
	ErrInvalidClaims     = errors.New("invalid token claims")

	// Key and configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownKey    = errors.New("unknown signing key")

	// General errors
	ErrNotFound = errors.New("not found")
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

// Reason returns a short label for a validation error, used as a log field.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrMalformedToken):
		return "malformed"
	case Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	case Is(err, ErrExpired):
		return "expired"
	case Is(err, ErrInvalidClaims):
		return "invalid_claims"
	default:
		return "unknown"
	}
}
