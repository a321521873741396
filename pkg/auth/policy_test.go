package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/keycloak-auth/internal/testutil"
	"github.com/StricklySoft/keycloak-auth/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

func TestDecisionKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "deny", DecisionDeny.String())
	assert.Equal(t, "passthrough", DecisionPassThrough.String())
	assert.Equal(t, "DecisionKind(0)", DecisionKind(0).String())
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	_, err := NewPolicy(nil)
	testutil.AssertErrorCode(t, err, sserr.CodeInternalConfiguration)

	_, err = NewPolicy(newTestVerifier(t), WithRequiredRoles(Role{Kind: "group", Name: "x"}))
	testutil.AssertErrorCode(t, err, sserr.CodeInternalConfiguration)

	p := newTestPolicy(t, WithPassthrough(nil))
	assert.True(t, p.Detailed())
	assert.Empty(t, p.RequiredRoles())
	assert.Equal(t, DecisionDeny, p.Evaluate(context.Background(), RequestInfo{}, "", false).Kind,
		"nil passthrough falls back to always-return")
}

func TestPolicy_RequiredRolesIsACopy(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t, WithRequiredRoles(RealmRole("admin")))
	roles := p.RequiredRoles()
	roles[0] = RealmRole("mutated")
	assert.Equal(t, Roles{RealmRole("admin")}, p.RequiredRoles())
}

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluate_Allow(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t, WithRequiredRoles(RealmRole("admin"), ClientRole(fixtures.Client, "read")))

	token := signed(t, validClaims())
	d := evaluate(p, BearerHeader(token))

	require.Equal(t, DecisionAllow, d.Kind, "err: %v", d.Err)
	assert.True(t, d.Allowed())
	assert.Equal(t, http.StatusOK, d.Status())
	assert.Empty(t, d.Body())
	assert.Nil(t, d.Err)

	require.NotNil(t, d.Claims)
	assert.Equal(t, fixtures.Subject, d.Claims.Subject())
	assert.Equal(t, token, d.Claims.Token.Value())
	assert.Equal(t, Roles{
		RealmRole("offline_access"),
		RealmRole("user"),
		RealmRole("admin"),
		ClientRole(fixtures.OtherClient, "manage-account"),
		ClientRole(fixtures.Client, "read"),
		ClientRole(fixtures.Client, "write"),
	}, d.Claims.Roles)
	assert.True(t, d.Claims.Unstructured.Has("company_id"))
	assert.False(t, d.Claims.Unstructured.Has("sub"))
}

func TestEvaluate_NoRequiredRolesAdmitsAnyAuthenticatedCaller(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)
	d := evaluate(p, bearer(t, fixtures.MinimalClaims(testNow)))
	require.Equal(t, DecisionAllow, d.Kind, "err: %v", d.Err)
	assert.Empty(t, d.Claims.Roles)
}

func TestEvaluate_CaseInsensitiveScheme(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t)
	d := evaluate(p, "bearer "+signed(t, validClaims()))
	assert.Equal(t, DecisionAllow, d.Kind)
}

func TestEvaluate_Deny(t *testing.T) {
	t.Parallel()

	expired := validClaims()
	expired["exp"] = testNow.Add(-time.Hour).Unix()
	noSub := validClaims()
	delete(noSub, "sub")

	tests := []struct {
		name   string
		header string
		want   sserr.Code
		status int
	}{
		{"basic scheme", "Basic dXNlcjpwYXNz", sserr.CodeAuthenticationMalformedHeader, http.StatusUnauthorized},
		{"scheme only", "Bearer", sserr.CodeAuthenticationMalformedHeader, http.StatusUnauthorized},
		{"empty header", "", sserr.CodeAuthenticationMalformedHeader, http.StatusUnauthorized},
		{"two tokens", "Bearer a b", sserr.CodeAuthenticationMalformedHeader, http.StatusUnauthorized},
		{"not a jwt", "Bearer test", sserr.CodeAuthenticationInvalid, http.StatusUnauthorized},
		{"expired", bearer(t, expired), sserr.CodeAuthenticationExpired, http.StatusUnauthorized},
		{"missing sub", bearer(t, noSub), sserr.CodeAuthenticationClaims, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPolicy(t)
			d := evaluate(p, tt.header)
			assert.Equal(t, DecisionDeny, d.Kind)
			assert.False(t, d.Allowed())
			assert.Nil(t, d.Claims)
			require.NotNil(t, d.Err)
			assert.Equal(t, tt.want, d.Err.Code)
			assert.Equal(t, tt.status, d.Status())
		})
	}
}

func TestEvaluate_MissingRoles(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t, WithRequiredRoles(
		RealmRole("admin"),
		RealmRole("superuser"),
		ClientRole(fixtures.Client, "delete"),
		ClientRole(fixtures.OtherClient, "read"),
		RealmRole("read"),
	))

	d := evaluate(p, bearer(t, validClaims()))
	require.Equal(t, DecisionDeny, d.Kind)
	assert.Equal(t, sserr.CodeAuthorizationInsufficientRole, d.Err.Code)
	assert.Equal(t, http.StatusForbidden, d.Status())
	assert.Equal(t, []string{
		"realm:superuser",
		"client:my-client:delete",
		"client:account:read",
		"realm:read",
	}, d.Err.Details["missing"])
	assert.Equal(t,
		"AUTHZ_002: auth: missing required roles: realm:superuser,client:my-client:delete,client:account:read,realm:read",
		d.Body())
}

// Authentication failures take precedence over role checks, and header
// problems over verification.
func TestEvaluate_Precedence(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t, WithRequiredRoles(RealmRole("superuser")))

	d := evaluate(p, "Token "+signed(t, validClaims()))
	assert.Equal(t, sserr.CodeAuthenticationMalformedHeader, d.Err.Code)

	expired := validClaims()
	expired["exp"] = testNow.Add(-time.Hour).Unix()
	d = evaluate(p, bearer(t, expired))
	assert.Equal(t, sserr.CodeAuthenticationExpired, d.Err.Code)

	noExp := validClaims()
	delete(noExp, "exp")
	d = evaluate(p, bearer(t, noExp))
	assert.Equal(t, sserr.CodeAuthenticationClaims, d.Err.Code)
	assert.Equal(t, http.StatusUnauthorized, d.Status())
}

func TestEvaluate_Absent(t *testing.T) {
	t.Parallel()
	info := RequestInfo{Method: http.MethodGet, Path: "/private"}

	t.Run("always return", func(t *testing.T) {
		t.Parallel()
		d := newTestPolicy(t).Evaluate(context.Background(), info, "", false)
		require.Equal(t, DecisionDeny, d.Kind)
		assert.Equal(t, sserr.CodeAuthenticationMissing, d.Err.Code)
		assert.Equal(t, http.StatusUnauthorized, d.Status())
	})

	t.Run("always pass", func(t *testing.T) {
		t.Parallel()
		d := newTestPolicy(t, WithPassthrough(AlwaysPass)).Evaluate(context.Background(), info, "", false)
		assert.Equal(t, DecisionPassThrough, d.Kind)
		assert.True(t, d.Allowed())
		assert.Nil(t, d.Claims)
		assert.Nil(t, d.Err)
	})

	t.Run("custom policy sees the request", func(t *testing.T) {
		t.Parallel()
		public := PassthroughFunc(func(r RequestInfo) bool { return r.Path == "/public" })
		p := newTestPolicy(t, WithPassthrough(public))

		assert.Equal(t, DecisionPassThrough,
			p.Evaluate(context.Background(), RequestInfo{Path: "/public"}, "", false).Kind)
		assert.Equal(t, DecisionDeny,
			p.Evaluate(context.Background(), info, "", false).Kind)
	})

	t.Run("present but invalid header is never passed", func(t *testing.T) {
		t.Parallel()
		p := newTestPolicy(t, WithPassthrough(AlwaysPass))
		d := p.Evaluate(context.Background(), info, "garbage", true)
		assert.Equal(t, DecisionDeny, d.Kind)
	})
}

func TestDecision_Body(t *testing.T) {
	t.Parallel()
	expired := validClaims()
	expired["exp"] = testNow.Add(-time.Hour).Unix()

	detailed := evaluate(newTestPolicy(t), bearer(t, expired))
	assert.Contains(t, detailed.Body(), "AUTH_002")
	assert.Contains(t, detailed.Body(), "expired")

	opaque := evaluate(newTestPolicy(t, WithDetailedResponses(false)), bearer(t, expired))
	assert.Equal(t, "401 Unauthorized", opaque.Body())

	forbidden := evaluate(
		newTestPolicy(t, WithDetailedResponses(false), WithRequiredRoles(RealmRole("superuser"))),
		bearer(t, validClaims()))
	assert.Equal(t, "403 Forbidden", forbidden.Body())
}

func TestEvaluate_Concurrent(t *testing.T) {
	t.Parallel()
	p := newTestPolicy(t, WithRequiredRoles(RealmRole("admin")))
	header := bearer(t, validClaims())

	done := make(chan Decision, 16)
	for range 16 {
		go func() { done <- evaluate(p, header) }()
	}
	for range 16 {
		assert.Equal(t, DecisionAllow, (<-done).Kind)
	}
}

func TestEvaluate_CreatesSpan(t *testing.T) {
	t.Parallel()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := newTestPolicy(t)
	p.tracer = tp.Tracer(tracerName)

	d := evaluate(p, bearer(t, validClaims()))
	require.Equal(t, DecisionAllow, d.Kind)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "auth.Evaluate", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "allow", attrs["auth.decision"])
	assert.Equal(t, fixtures.Subject, attrs["auth.subject"])
	assert.NotContains(t, attrs, "auth.error_code")
}
