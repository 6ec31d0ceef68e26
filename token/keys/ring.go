package keys

import (
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/pkg/errors"
)

// Ring holds the current signing key and the retired keys that are still
// accepted for verification. A Ring is never modified after construction, so it
// is safe to share between goroutines; rotation builds a new Ring.
type Ring struct {
	current Signer
	retired []Signer
	byKID   map[string]Signer
	methods []string
}

// NewRing creates a ring that signs with current and verifies with current or
// any of the retired signers. Every signer must carry a key id so that it can
// still be found after it has been rotated out.
func NewRing(current Signer, retired ...Signer) (*Ring, error) {
	if current == nil {
		return nil, errors.Wrap(apperrors.ErrInvalidConfig, "key ring needs a current signer")
	}

	r := &Ring{
		current: current,
		retired: append([]Signer(nil), retired...),
		byKID:   make(map[string]Signer, len(retired)+1),
	}

	for _, s := range append([]Signer{current}, retired...) {
		if s == nil {
			return nil, errors.Wrap(apperrors.ErrInvalidConfig, "nil signer in key ring")
		}
		kid := s.KeyID()
		if kid == "" {
			return nil, errors.Wrap(apperrors.ErrInvalidConfig, "signer without key id")
		}
		if _, dup := r.byKID[kid]; dup {
			return nil, errors.Wrapf(apperrors.ErrInvalidConfig, "duplicate key id %q", kid)
		}
		r.byKID[kid] = s
	}

	seen := make(map[string]struct{})
	for _, s := range append([]Signer{current}, retired...) {
		alg := s.GetSigningMethod().Alg()
		if _, ok := seen[alg]; !ok {
			seen[alg] = struct{}{}
			r.methods = append(r.methods, alg)
		}
	}
	return r, nil
}

// Current returns the signer used for new tokens
func (r *Ring) Current() Signer {
	return r.current
}

// Retired returns the retired signers, most recently retired first
func (r *Ring) Retired() []Signer {
	return append([]Signer(nil), r.retired...)
}

// Rotate returns a new ring signing with next. The old current key becomes the
// most recent retired key and at most retain retired keys are kept.
func (r *Ring) Rotate(next Signer, retain int) (*Ring, error) {
	if retain < 0 {
		retain = 0
	}
	retired := append([]Signer{r.current}, r.retired...)
	if len(retired) > retain {
		retired = retired[:retain]
	}
	return NewRing(next, retired...)
}

// ValidMethods lists the algorithms any key in the ring can verify
func (r *Ring) ValidMethods() []string {
	return append([]string(nil), r.methods...)
}

// Keyfunc resolves the verification key for a parsed token. Tokens without a
// "kid" header are only checked against the current key.
func (r *Ring) Keyfunc(token *jwt.Token) (any, error) {
	signer := r.current
	if raw, present := token.Header["kid"]; present {
		kid, ok := raw.(string)
		if !ok || kid == "" {
			return nil, errors.Wrap(apperrors.ErrUnknownKey, "kid header must be a non-empty string")
		}
		if signer, ok = r.byKID[kid]; !ok {
			return nil, errors.Wrapf(apperrors.ErrUnknownKey, "kid %q", kid)
		}
	}
	return signer.GetVerificationKey(token)
}

// JWKS returns the public keys of every asymmetric signer in the ring
func (r *Ring) JWKS() (*JWKS, error) {
	jwks := &JWKS{Keys: []JWK{}}
	for _, s := range append([]Signer{r.current}, r.retired...) {
		kps, ok := s.(*KeyPairSigner)
		if !ok {
			continue
		}
		jwk, err := kps.GetJWK()
		if err != nil {
			return nil, err
		}
		jwks.Keys = append(jwks.Keys, *jwk)
	}
	if len(jwks.Keys) == 0 {
		return nil, errors.New("JWKS only supported for asymmetric signing (RSA/ECDSA)")
	}
	return jwks, nil
}
