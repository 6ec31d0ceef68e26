package tokenfake

import (
	"fmt"
	"sync"

	"github.com/jrsteele09/go-token-service/token"
	"github.com/pkg/errors"
)

var (
	_ token.Service   = (*FakeService)(nil)
	_ token.Inspector = (*FakeService)(nil)
)

// FakeService is an in-memory token.Service. Issued tokens are plain strings
// mapped to their claims; unknown tokens are malformed.
type FakeService struct {
	tokens  map[string]*token.Claims
	revoked map[string]error
	counter int
	lock    sync.RWMutex
}

func NewFakeService() *FakeService {
	return &FakeService{
		tokens:  make(map[string]*token.Claims),
		revoked: make(map[string]error),
	}
}

// Add registers a token that validates to claims
func (fs *FakeService) Add(rawToken string, claims *token.Claims) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.tokens[rawToken] = claims
}

// Reject makes a known token fail validation with err, e.g. token.ErrExpired
func (fs *FakeService) Reject(rawToken string, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.revoked[rawToken] = err
}

func (fs *FakeService) IssueAccessToken(userID string, roles, permissions []string) (string, error) {
	if userID == "" {
		return "", errors.Wrap(token.ErrInvalidInput, "user id is empty")
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.counter++
	rawToken := fmt.Sprintf("access-%d", fs.counter)
	claims := &token.Claims{Roles: roles, Permissions: permissions}
	claims.Subject = userID
	fs.tokens[rawToken] = claims
	return rawToken, nil
}

func (fs *FakeService) IssueRefreshToken() (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.counter++
	return fmt.Sprintf("refresh-%d", fs.counter), nil
}

func (fs *FakeService) ValidateAccessToken(rawToken string) (string, bool) {
	claims, err := fs.Inspect(rawToken)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

func (fs *FakeService) Inspect(rawToken string) (*token.Claims, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if err, ok := fs.revoked[rawToken]; ok {
		return nil, err
	}
	claims, ok := fs.tokens[rawToken]
	if !ok {
		return nil, token.ErrMalformedToken
	}
	return claims, nil
}
