package token

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-service/internal/config"
	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/internal/utils"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_ Service   = (*Manager)(nil)
	_ Inspector = (*Manager)(nil)
)

// Manager signs and validates access tokens with the keys of a keys.Ring.
// All methods are safe for concurrent use. The only mutable state is the key
// ring, which is swapped atomically.
type Manager struct {
	ring               atomic.Pointer[keys.Ring]
	accessTokenExpiry  time.Duration
	leeway             time.Duration
	issuer             string
	audience           string
	refreshTokenLength int
	refreshStore       *refresh.Manager
	nowFunc            func() time.Time
	logger             zerolog.Logger
}

type ManagerOption func(*Manager)

func WithAccessTokenLifetime(lifetime time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = lifetime
	}
}

// WithLeeway allows for clock skew when checking expiry
func WithLeeway(leeway time.Duration) ManagerOption {
	return func(m *Manager) {
		m.leeway = leeway
	}
}

// WithIssuer sets the "iss" claim and requires it on validation
func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithAudience sets the "aud" claim and requires it on validation
func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func WithRefreshTokenLength(length int) ManagerOption {
	return func(m *Manager) {
		m.refreshTokenLength = length
	}
}

// WithRefreshStore records the refresh tokens of IssueTokenPair so they can be
// looked up and revoked later
func WithRefreshStore(store *refresh.Manager) ManagerOption {
	return func(m *Manager) {
		m.refreshStore = store
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a token manager signing with the current key of ring
func New(ring *keys.Ring, options ...ManagerOption) (*Manager, error) {
	if ring == nil {
		return nil, errors.Wrap(apperrors.ErrInvalidConfig, "token manager needs a key ring")
	}

	m := &Manager{
		accessTokenExpiry:  config.DefaultAccessTokenLifetime,
		refreshTokenLength: config.DefaultRefreshTokenLength,
		nowFunc:            time.Now,
		logger:             log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry < time.Second {
		return nil, errors.Wrapf(apperrors.ErrInvalidConfig, "access token lifetime %s is below 1s", m.accessTokenExpiry)
	}
	if m.leeway < 0 {
		return nil, errors.Wrap(apperrors.ErrInvalidConfig, "leeway must not be negative")
	}
	if m.refreshTokenLength < refresh.MinTokenLength {
		return nil, errors.Wrapf(apperrors.ErrInvalidConfig, "refresh token length %d is below %d bytes", m.refreshTokenLength, refresh.MinTokenLength)
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}

	m.ring.Store(ring)
	return m, nil
}

// FromConfig loads the key ring named by cfg and creates a manager from it.
// Options are applied after the configured values.
func FromConfig(cfg config.TokenConfig, options ...ManagerOption) (*Manager, error) {
	ring, err := keys.RingFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "token.FromConfig RingFromConfig")
	}

	opts := append([]ManagerOption{
		WithAccessTokenLifetime(cfg.GetAccessTokenLifetime()),
		WithLeeway(cfg.GetLeeway()),
		WithIssuer(cfg.GetIssuer()),
		WithAudience(cfg.GetAudience()),
		WithRefreshTokenLength(cfg.GetRefreshTokenLength()),
	}, options...)
	return New(ring, opts...)
}

// AccessTokenLifetime is the lifetime of every issued access token
func (m *Manager) AccessTokenLifetime() time.Duration {
	return m.accessTokenExpiry
}

// KeyRing returns the ring currently used for signing and validation
func (m *Manager) KeyRing() *keys.Ring {
	return m.ring.Load()
}

// SetKeyRing replaces the key ring. Tokens issued afterwards are signed with
// the new current key; validation uses the new ring immediately.
func (m *Manager) SetKeyRing(ring *keys.Ring) error {
	if ring == nil {
		return errors.Wrap(apperrors.ErrInvalidConfig, "key ring is nil")
	}
	m.ring.Store(ring)
	return nil
}

// RotateKey makes next the signing key, keeping at most retain previous keys
// for validation
func (m *Manager) RotateKey(next keys.Signer, retain int) error {
	for {
		current := m.ring.Load()
		rotated, err := current.Rotate(next, retain)
		if err != nil {
			return errors.Wrap(err, "Manager.RotateKey")
		}
		if m.ring.CompareAndSwap(current, rotated) {
			m.logger.Info().Str("kid", next.KeyID()).Int("retained", len(rotated.Retired())).Msg("signing key rotated")
			return nil
		}
	}
}

// JWKS returns the public keys of the current ring
func (m *Manager) JWKS() (*keys.JWKS, error) {
	return m.ring.Load().JWKS()
}

func (m *Manager) IssueAccessToken(userID string, roles, permissions []string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", errors.Wrapf(ErrInvalidInput, "user id %q is not a UUID", userID)
	}
	if utils.HasBlank(roles) {
		return "", errors.Wrap(ErrInvalidInput, "blank role name")
	}
	if utils.HasBlank(permissions) {
		return "", errors.Wrap(ErrInvalidInput, "blank permission name")
	}

	now := m.nowFunc()
	claims := Claims{
		Roles:       utils.SortedSet(roles),
		Permissions: utils.SortedSet(permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenExpiry)),
			ID:        uuid.New().String(), // distinct tokens within the same second
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signedToken, err := m.ring.Load().Current().Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.IssueAccessToken Sign")
	}
	return signedToken, nil
}

// IssueRefreshToken returns an unrecorded refresh token. Use IssueTokenPair
// when the token has to be revocable.
func (m *Manager) IssueRefreshToken() (string, error) {
	return refresh.Generate(m.refreshTokenLength)
}

// IssueTokenPair issues an access token and a refresh token for the user. With
// a refresh store the refresh token is recorded against the user.
func (m *Manager) IssueTokenPair(userID string, roles, permissions []string) (accessToken, refreshToken string, err error) {
	accessToken, err = m.IssueAccessToken(userID, roles, permissions)
	if err != nil {
		return "", "", err
	}

	if m.refreshStore == nil {
		refreshToken, err = m.IssueRefreshToken()
	} else {
		refreshToken, err = m.refreshStore.Create(userID)
	}
	if err != nil {
		return "", "", errors.Wrap(err, "Manager.IssueTokenPair")
	}
	return accessToken, refreshToken, nil
}

func (m *Manager) ValidateAccessToken(rawToken string) (string, bool) {
	token, claims, err := m.parse(rawToken)
	if err != nil {
		event := m.logger.Debug().Str("reason", apperrors.Reason(err))
		if token != nil {
			if kid, ok := token.Header["kid"].(string); ok {
				event = event.Str("kid", kid)
			}
		}
		event.Err(err).Msg("access token rejected")
		return "", false
	}
	return claims.Subject, true
}

func (m *Manager) Inspect(rawToken string) (*Claims, error) {
	_, claims, err := m.parse(rawToken)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(rawToken string) (*jwt.Token, *Claims, error) {
	ring := m.ring.Load()

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(ring.ValidMethods()),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithLeeway(m.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(rawToken, claims, ring.Keyfunc)
	if err != nil {
		return token, nil, classify(err)
	}
	if !token.Valid {
		return token, nil, errors.Wrap(ErrSignatureMismatch, "token is not valid")
	}
	return token, claims, nil
}

// classify maps jwt parser errors onto the service error taxonomy, keeping
// the parser error in the chain
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, ErrInvalidClaims):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaims, err)
	}
}
