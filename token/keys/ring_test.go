package keys_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-service/internal/config"
	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/stretchr/testify/require"
)

func hmacSigner(t *testing.T, kid string) keys.Signer {
	t.Helper()
	s, err := keys.GenerateSigner(kid, keys.HS256)
	require.NoError(t, err)
	return s
}

func TestNewRing_Errors(t *testing.T) {
	_, err := keys.NewRing(nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = keys.NewRing(hmacSigner(t, "a"), hmacSigner(t, "a"))
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = keys.NewRing(hmacSigner(t, "a"), hmacSigner(t, ""))
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = keys.NewRing(hmacSigner(t, ""))
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig, "a current key without kid could never be rotated")
}

func TestRing_Keyfunc(t *testing.T) {
	old := hmacSigner(t, "old")
	current := hmacSigner(t, "current")
	ring, err := keys.NewRing(current, old)
	require.NoError(t, err)
	require.Equal(t, []string{keys.HS256}, ring.ValidMethods())

	t.Run("current key", func(t *testing.T) {
		raw, err := current.Sign(testClaims())
		require.NoError(t, err)
		_, err = jwt.Parse(raw, ring.Keyfunc)
		require.NoError(t, err)
	})

	t.Run("retired key", func(t *testing.T) {
		raw, err := old.Sign(testClaims())
		require.NoError(t, err)
		_, err = jwt.Parse(raw, ring.Keyfunc)
		require.NoError(t, err)
	})

	t.Run("unknown kid", func(t *testing.T) {
		raw, err := hmacSigner(t, "stranger").Sign(testClaims())
		require.NoError(t, err)
		_, err = jwt.Parse(raw, ring.Keyfunc)
		require.ErrorIs(t, err, jwt.ErrTokenUnverifiable)
		require.ErrorIs(t, err, apperrors.ErrUnknownKey)
	})

	t.Run("missing kid falls back to current key", func(t *testing.T) {
		secret := []byte("0123456789abcdef0123456789abcdef")
		signer, err := keys.NewHMACSigner("current", keys.HS256, secret)
		require.NoError(t, err)
		r, err := keys.NewRing(signer)
		require.NoError(t, err)

		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims()).SignedString(secret)
		require.NoError(t, err)
		_, err = jwt.Parse(raw, r.Keyfunc)
		require.NoError(t, err)
	})
}

func TestRing_Rotate(t *testing.T) {
	k1, k2, k3, k4 := hmacSigner(t, "k1"), hmacSigner(t, "k2"), hmacSigner(t, "k3"), hmacSigner(t, "k4")

	ring, err := keys.NewRing(k1)
	require.NoError(t, err)

	ring, err = ring.Rotate(k2, 2)
	require.NoError(t, err)
	ring, err = ring.Rotate(k3, 2)
	require.NoError(t, err)
	ring, err = ring.Rotate(k4, 2)
	require.NoError(t, err)

	require.Equal(t, "k4", ring.Current().KeyID())
	retired := ring.Retired()
	require.Len(t, retired, 2)
	require.Equal(t, "k3", retired[0].KeyID())
	require.Equal(t, "k2", retired[1].KeyID())

	raw, err := k1.Sign(testClaims())
	require.NoError(t, err)
	_, err = jwt.Parse(raw, ring.Keyfunc)
	require.ErrorIs(t, err, apperrors.ErrUnknownKey, "keys beyond the retention window are dropped")

	_, err = ring.Rotate(k4, 1)
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig, "the next key must have a fresh kid")
}

func TestRing_JWKS(t *testing.T) {
	hmacRing, err := keys.NewRing(hmacSigner(t, "h"))
	require.NoError(t, err)
	_, err = hmacRing.JWKS()
	require.Error(t, err, "HMAC keys are never published")

	current, err := keys.GenerateSigner("ec-2", keys.ES256)
	require.NoError(t, err)
	old, err := keys.GenerateSigner("ec-1", keys.ES256)
	require.NoError(t, err)
	ring, err := keys.NewRing(current, old)
	require.NoError(t, err)

	jwks, err := ring.JWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 2)
	require.Equal(t, "ec-2", jwks.Keys[0].Kid)
	require.Equal(t, "ec-1", jwks.Keys[1].Kid)
}

func TestRingFromConfig(t *testing.T) {
	t.Run("HMAC with retired secret", func(t *testing.T) {
		s := config.Defaults()
		s.Secret = "0123456789abcdef0123456789abcdef"
		s.RetiredKeys = []config.RetiredKey{{KeyID: "previous", Secret: "fedcba9876543210fedcba9876543210"}}

		ring, err := keys.RingFromConfig(s)
		require.NoError(t, err)
		require.Equal(t, config.DefaultKeyID, ring.Current().KeyID())
		require.Len(t, ring.Retired(), 1)
	})

	t.Run("ECDSA key file", func(t *testing.T) {
		kp, err := keys.GenerateECDSAKeyPair("ec", keys.ES256)
		require.NoError(t, err)
		privatePEM, err := kp.ExportPrivateKeyPEM()
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "ec.pem")
		require.NoError(t, os.WriteFile(path, []byte(privatePEM), 0o600))

		s := config.Defaults()
		s.Algorithm = keys.ES256
		s.KeyID = "ec"
		s.PrivateKeyFile = path

		ring, err := keys.RingFromConfig(s)
		require.NoError(t, err)
		require.Equal(t, keys.ES256, ring.Current().GetSigningMethod().Alg())
	})

	t.Run("missing key file", func(t *testing.T) {
		s := config.Defaults()
		s.Algorithm = keys.RS256
		s.PrivateKeyFile = filepath.Join(t.TempDir(), "absent.pem")

		_, err := keys.RingFromConfig(s)
		require.ErrorContains(t, err, "failed to read private key")
	})
}
