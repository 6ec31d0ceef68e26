package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record of an issued refresh token.
// The token string itself is never stored, only its digest.
type StoredRefreshToken struct {
	Digest    string    // hex blake2b-256 of the token string
	UserID    string    // owner of the token
	IssuedAt  time.Time // when the token was created
	ExpiresAt time.Time // after which the token is refused
}

// Repo stores refresh token records keyed by digest. Get and Delete return
// errors.ErrNotFound for unknown digests.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Get(digest string) (*StoredRefreshToken, error)
	Delete(digest string) error
	DeleteByUserID(userID string) (int, error)
}
