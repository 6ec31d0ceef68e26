package token_test

import (
	"context"
	"crypto"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-service/token"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/stretchr/testify/require"
)

// Access tokens must verify with an off-the-shelf JOSE stack given only the
// published public key.
func TestManager_TokensVerifyWithOIDCLibrary(t *testing.T) {
	for _, alg := range []string{keys.RS256, keys.ES256} {
		t.Run(alg, func(t *testing.T) {
			kp, err := keys.GenerateKeyPair("interop", alg)
			require.NoError(t, err)
			ring, err := keys.NewRing(keys.NewKeyPairSigner(kp))
			require.NoError(t, err)

			m, err := token.New(ring, token.WithIssuer("https://warehouse.example"))
			require.NoError(t, err)

			raw, err := m.IssueAccessToken(exampleUserID, []string{exampleRole}, []string{examplePermission})
			require.NoError(t, err)

			verifier := oidc.NewVerifier("https://warehouse.example",
				&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{kp.PublicKey}},
				&oidc.Config{SkipClientIDCheck: true, SupportedSigningAlgs: []string{alg}},
			)

			idToken, err := verifier.Verify(context.Background(), raw)
			require.NoError(t, err)
			require.Equal(t, exampleUserID, idToken.Subject)

			var claims struct {
				Roles       []string `json:"roles"`
				Permissions []string `json:"permissions"`
			}
			require.NoError(t, idToken.Claims(&claims))
			require.Equal(t, []string{exampleRole}, claims.Roles)
			require.Equal(t, []string{examplePermission}, claims.Permissions)
		})
	}
}

func TestManager_JWKS(t *testing.T) {
	kp, err := keys.GenerateKeyPair("es-1", keys.ES256)
	require.NoError(t, err)
	ring, err := keys.NewRing(keys.NewKeyPairSigner(kp))
	require.NoError(t, err)
	m, err := token.New(ring)
	require.NoError(t, err)

	jwks, err := m.JWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "es-1", jwks.Keys[0].Kid)
	require.Equal(t, keys.ES256, jwks.Keys[0].Alg)

	_, err = newManager(t).JWKS()
	require.Error(t, err)
}
