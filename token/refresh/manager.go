package refresh

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-service/internal/config"
	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Manager creates refresh tokens and tracks them in a Repo. Whether a token
// is consumed when it is exchanged is up to the caller: Get never deletes a
// live token, Delete does.
type Manager struct {
	repo     Repo
	length   int
	lifetime time.Duration
	nowFunc  func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenLength(length int) ManagerOption {
	return func(m *Manager) {
		m.length = length
	}
}

func WithLifetime(lifetime time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lifetime = lifetime
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:     repo,
		length:   config.DefaultRefreshTokenLength,
		lifetime: config.DefaultRefreshTokenLifetime,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewManagerFromConfig creates a manager using the configured token length and lifetime
func NewManagerFromConfig(repo Repo, cfg config.TokenConfig, options ...ManagerOption) *Manager {
	opts := append([]ManagerOption{
		WithTokenLength(cfg.GetRefreshTokenLength()),
		WithLifetime(cfg.GetRefreshTokenLifetime()),
	}, options...)
	return NewManager(repo, opts...)
}

// Digest returns the storage key of a token
func Digest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create generates a new refresh token for the user and stores its digest
func (m *Manager) Create(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.Wrap(apperrors.ErrInvalidInput, "user id is empty")
	}

	tokenStr, err := Generate(m.length)
	if err != nil {
		return "", err
	}

	now := m.nowFunc()
	if err := m.repo.Upsert(&StoredRefreshToken{
		Digest:    Digest(tokenStr),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.lifetime),
	}); err != nil {
		return "", errors.Wrap(err, "Manager.Create Upsert")
	}
	return tokenStr, nil
}

// Get returns the record of a live token. Expired tokens are removed and
// reported as errors.ErrExpired.
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "refresh token is empty")
	}

	digest := Digest(token)
	rt, err := m.repo.Get(digest)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(digest)
		return nil, errors.Wrap(apperrors.ErrExpired, "refresh token expired")
	}
	return rt, nil
}

// Delete revokes a single token
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(Digest(token))
}

// DeleteForUser revokes every token of the user and returns how many were removed
func (m *Manager) DeleteForUser(userID string) (int, error) {
	return m.repo.DeleteByUserID(userID)
}

// IsExpired reports whether the token is at or past its expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return !m.nowFunc().Before(rt.ExpiresAt)
}

// Purger is implemented by repos that can drop expired records in bulk
type Purger interface {
	DeleteExpired(now time.Time) int
}

// PurgeExpired removes expired records when the repo supports it
func (m *Manager) PurgeExpired() int {
	p, ok := m.repo.(Purger)
	if !ok {
		return 0
	}
	return p.DeleteExpired(m.nowFunc())
}
