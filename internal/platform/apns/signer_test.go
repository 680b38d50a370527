package apns

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testP8Key(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	return buf.String(), key
}

func TestSigner_SigningToken(t *testing.T) {
	pemKey, key := testP8Key(t)

	t.Run("Missing config yields no token", func(t *testing.T) {
		cases := []SignerConfig{
			{},
			{KeyID: "KID123", TeamID: "TEAM123"},      // no key material
			{TeamID: "TEAM123", P8KeyContent: pemKey}, // no key id
			{KeyID: "KID123", P8KeyContent: pemKey},   // no team id
		}
		for _, cfg := range cases {
			signer, err := NewSigner(cfg)
			require.NoError(t, err)

			tok, ok := signer.SigningToken()
			assert.False(t, ok)
			assert.Empty(t, tok)
		}
	})

	t.Run("Malformed key fails fast", func(t *testing.T) {
		_, err := NewSigner(SignerConfig{
			KeyID:        "KID123",
			TeamID:       "TEAM123",
			P8KeyContent: "not a pem key",
		})
		require.Error(t, err)
	})

	t.Run("Token verifies as ES256 with kid and iss", func(t *testing.T) {
		signer, err := NewSigner(SignerConfig{KeyID: "KID123", TeamID: "TEAM123", P8KeyContent: pemKey})
		require.NoError(t, err)

		bearer, ok := signer.SigningToken()
		require.True(t, ok)

		parsed, err := jwt.Parse(bearer,
			func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
			jwt.WithValidMethods([]string{"ES256"}),
		)
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		assert.Equal(t, "KID123", parsed.Header["kid"])

		claims := parsed.Claims.(jwt.MapClaims)
		iss, err := claims.GetIssuer()
		require.NoError(t, err)
		assert.Equal(t, "TEAM123", iss)

		iat, err := claims.GetIssuedAt()
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), iat.Time, time.Minute)
	})

	t.Run("Cached token returned verbatim", func(t *testing.T) {
		signer, err := NewSigner(SignerConfig{KeyID: "KID123", TeamID: "TEAM123", P8KeyContent: pemKey})
		require.NoError(t, err)

		first, ok := signer.SigningToken()
		require.True(t, ok)
		second, ok := signer.SigningToken()
		require.True(t, ok)

		assert.Equal(t, first, second)
	})

	t.Run("Expired cache entry is replaced", func(t *testing.T) {
		signer, err := NewSigner(SignerConfig{KeyID: "KID123", TeamID: "TEAM123", P8KeyContent: pemKey})
		require.NoError(t, err)

		signer.cached.Store(&signedToken{bearer: "stale", expiresAt: time.Now().Add(-time.Minute).Unix()})

		bearer, ok := signer.SigningToken()
		require.True(t, ok)
		assert.NotEqual(t, "stale", bearer)

		minted := signer.cached.Load()
		require.NotNil(t, minted)
		assert.Greater(t, minted.expiresAt, time.Now().Unix()+3000)
	})

	t.Run("Entry inside refresh margin is replaced", func(t *testing.T) {
		signer, err := NewSigner(SignerConfig{KeyID: "KID123", TeamID: "TEAM123", P8KeyContent: pemKey})
		require.NoError(t, err)

		// Still nominally valid, but with less than the 30s margin left.
		signer.cached.Store(&signedToken{bearer: "nearly-stale", expiresAt: time.Now().Add(10 * time.Second).Unix()})

		bearer, ok := signer.SigningToken()
		require.True(t, ok)
		assert.NotEqual(t, "nearly-stale", bearer)
	})
}
