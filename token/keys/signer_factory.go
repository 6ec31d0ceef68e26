package keys

import (
	"crypto/rand"
	"os"

	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/pkg/errors"
)

var hmacSecretLength = map[string]int{HS256: 32, HS384: 48, HS512: 64}

// IsHMAC reports whether the algorithm signs with a shared secret
func IsHMAC(algorithm string) bool {
	_, ok := hmacMethods[algorithm]
	return ok
}

// GenerateSigner creates a signer with fresh random key material
func GenerateSigner(keyID, algorithm string) (Signer, error) {
	if IsHMAC(algorithm) {
		secret := make([]byte, hmacSecretLength[algorithm])
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, "failed to generate HMAC secret")
		}
		return NewHMACSigner(keyID, algorithm, secret)
	}

	keyPair, err := GenerateKeyPair(keyID, algorithm)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate %s key pair", algorithm)
	}
	return NewKeyPairSigner(keyPair), nil
}

// NewSigner builds a signer from a shared secret (HMAC algorithms) or a PEM
// encoded private key (RSA and ECDSA algorithms)
func NewSigner(keyID, algorithm, secret, privateKeyPEM string) (Signer, error) {
	if IsHMAC(algorithm) {
		return NewHMACSigner(keyID, algorithm, []byte(secret))
	}

	keyPair, err := LoadKeyPairFromPEM(keyID, privateKeyPEM, algorithm)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load key pair %q", keyID)
	}
	return NewKeyPairSigner(keyPair), nil
}

// RingFromConfig loads the current and retired keys named by the configuration
func RingFromConfig(cfg config.TokenConfig) (*Ring, error) {
	alg := cfg.GetAlgorithm()

	current, err := signerFromSource(cfg.GetKeyID(), alg, cfg.GetSecret(), cfg.GetPrivateKeyFile())
	if err != nil {
		return nil, err
	}

	retired := make([]Signer, 0, len(cfg.GetRetiredKeys()))
	for _, rk := range cfg.GetRetiredKeys() {
		s, err := signerFromSource(rk.KeyID, alg, rk.Secret, rk.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		retired = append(retired, s)
	}

	return NewRing(current, retired...)
}

func signerFromSource(keyID, algorithm, secret, privateKeyFile string) (Signer, error) {
	if IsHMAC(algorithm) {
		return NewSigner(keyID, algorithm, secret, "")
	}
	pemData, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read private key for %q", keyID)
	}
	return NewSigner(keyID, algorithm, "", string(pemData))
}
