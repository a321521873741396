package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// RSA key generation dominates test time, so one pair is shared per binary.
var sharedRSAKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
})

// RSAKey returns the process-wide RSA test key.
func RSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := sharedRSAKey()
	require.NoError(t, err, "failed to generate RSA key")
	return key
}

// NewRSAKey returns a fresh RSA key, distinct from RSAKey. Use it when a
// test needs a second, non-matching key pair.
func NewRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return key
}

// ECKey returns a fresh ECDSA key on curve.
func ECKey(t testing.TB, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err, "failed to generate ECDSA key")
	return key
}

// Ed25519Key returns a fresh Ed25519 key.
func Ed25519Key(t testing.TB) ed25519.PrivateKey {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err, "failed to generate Ed25519 key")
	return key
}

// PublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block, the form Keycloak
// shows in the realm keys console.
func PublicKeyPEM(t testing.TB, pub crypto.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err, "failed to marshal public key")
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// SignToken signs claims with method and key and returns the compact JWT.
func SignToken(t testing.TB, method jwt.SigningMethod, key crypto.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err, "failed to sign token")
	return signed
}

// SignRS256 signs claims with RS256 and the shared RSA key.
func SignRS256(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	return SignToken(t, jwt.SigningMethodRS256, RSAKey(t), claims)
}

// UnsignedToken builds an "alg: none" token for rejection tests.
func UnsignedToken(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err, "failed to build unsigned token")
	return signed
}
