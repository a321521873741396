package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/keycloak-auth/internal/testutil"
	"github.com/StricklySoft/keycloak-auth/internal/testutil/fixtures"
)

// testNow is the fixed clock used by verifiers under test.
var testNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestVerifier(t *testing.T, opts ...VerifierOption) *Verifier {
	t.Helper()
	all := append([]VerifierOption{WithClock(fixedClock)}, opts...)
	v, err := NewVerifier(&testutil.RSAKey(t).PublicKey, all...)
	require.NoError(t, err)
	return v
}

func newTestPolicy(t *testing.T, opts ...PolicyOption) *Policy {
	t.Helper()
	p, err := NewPolicy(newTestVerifier(t), opts...)
	require.NoError(t, err)
	return p
}

// validClaims returns the full fixture claim set issued at testNow.
func validClaims() jwt.MapClaims {
	return fixtures.Claims(testNow)
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	return testutil.SignRS256(t, claims)
}

func bearer(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	return BearerHeader(signed(t, claims))
}

// evaluate runs p against a header that is present.
func evaluate(p *Policy, header string) Decision {
	return p.Evaluate(context.Background(), RequestInfo{Method: "GET", Path: "/private"}, header, true)
}
