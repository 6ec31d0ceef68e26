package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/internal/utils"
	"github.com/pkg/errors"
)

// Errors returned by the token service. Validation failures are only visible
// through Inspect; ValidateAccessToken reports every failure the same way.
var (
	ErrInvalidInput      = apperrors.ErrInvalidInput
	ErrMalformedToken    = apperrors.ErrMalformedToken
	ErrSignatureMismatch = apperrors.ErrSignatureMismatch
	ErrExpired           = apperrors.ErrExpired
	ErrInvalidClaims     = apperrors.ErrInvalidClaims
	ErrUnknownKey        = apperrors.ErrUnknownKey
)

// Service issues and validates the credentials used by the warehouse API
type Service interface {
	// IssueAccessToken signs a short lived token for the user carrying the
	// given roles and permissions
	IssueAccessToken(userID string, roles, permissions []string) (string, error)

	// IssueRefreshToken returns a new opaque random token
	IssueRefreshToken() (string, error)

	// ValidateAccessToken returns the subject of a valid access token. The
	// boolean is false for any token that is malformed, tampered with, signed
	// by an unknown key or expired.
	ValidateAccessToken(rawToken string) (string, bool)
}

// Inspector validates an access token and returns its claims, or an error
// describing why the token was rejected.
type Inspector interface {
	Inspect(rawToken string) (*Claims, error)
}

// Claims is the payload of an access token
type Claims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the standard claims have been checked
func (c Claims) Validate() error {
	if c.Subject == "" {
		return errors.Wrap(ErrInvalidClaims, "missing sub")
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return errors.Wrap(ErrInvalidClaims, "sub is not a UUID")
	}
	return nil
}

// HasRoles reports whether the claims carry every one of the roles
func (c *Claims) HasRoles(roles ...string) bool {
	return utils.ContainsAll(c.Roles, roles...)
}

// HasPermissions reports whether the claims carry every one of the permissions
func (c *Claims) HasPermissions(permissions ...string) bool {
	return utils.ContainsAll(c.Permissions, permissions...)
}
