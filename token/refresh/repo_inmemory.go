package refresh

import (
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu     sync.RWMutex
	tokens map[string]StoredRefreshToken  // digest -> record
	byUser map[string]map[string]struct{} // userID -> digests
}

// NewInMemoryRepo creates a new in-memory refresh token repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		tokens: make(map[string]StoredRefreshToken),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Upsert creates or replaces the record with the same digest
func (r *InMemoryRepo) Upsert(refreshToken *StoredRefreshToken) error {
	if refreshToken == nil || refreshToken.Digest == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "digest is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.tokens[refreshToken.Digest]; ok {
		r.unindex(old.UserID, old.Digest)
	}
	r.tokens[refreshToken.Digest] = *refreshToken

	if _, ok := r.byUser[refreshToken.UserID]; !ok {
		r.byUser[refreshToken.UserID] = make(map[string]struct{})
	}
	r.byUser[refreshToken.UserID][refreshToken.Digest] = struct{}{}
	return nil
}

func (r *InMemoryRepo) Get(digest string) (*StoredRefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tokens[digest]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rt, nil
}

func (r *InMemoryRepo) Delete(digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[digest]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.tokens, digest)
	r.unindex(rt.UserID, digest)
	return nil
}

func (r *InMemoryRepo) DeleteByUserID(userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	digests := r.byUser[userID]
	for digest := range digests {
		delete(r.tokens, digest)
	}
	delete(r.byUser, userID)
	return len(digests), nil
}

// DeleteExpired removes every record expiring at or before now
func (r *InMemoryRepo) DeleteExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for digest, rt := range r.tokens {
		if !now.Before(rt.ExpiresAt) {
			delete(r.tokens, digest)
			r.unindex(rt.UserID, digest)
			removed++
		}
	}
	return removed
}

// unindex must be called with the write lock held
func (r *InMemoryRepo) unindex(userID, digest string) {
	userTokens, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(userTokens, digest)
	if len(userTokens) == 0 {
		delete(r.byUser, userID)
	}
}
