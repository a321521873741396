package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

type contextKey int

const (
	// claimsKey stores the *Claims of an allowed request.
	claimsKey contextKey = iota
)

// ContextWithClaims returns ctx carrying claims. Mediators call this on
// every allowed request.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims of an allowed request. It returns
// nil and false for passthrough, guard-bypassed and unauthenticated
// requests.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// MustClaimsFromContext is ClaimsFromContext for handlers that are only
// reachable behind the middleware. It panics when no claims are present.
func MustClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		panic("auth: no claims in context; ensure authentication middleware is configured")
	}
	return claims
}

func requireClaims(ctx context.Context) (*Claims, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, sserr.New(sserr.CodeAuthenticationAbsent, "auth: request carries no authenticated claims")
	}
	return claims, nil
}

// StandardClaimsFromContext returns the standard claims, or an
// [sserr.CodeAuthenticationAbsent] error.
func StandardClaimsFromContext(ctx context.Context) (StandardClaims, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return StandardClaims{}, err
	}
	return claims.Standard, nil
}

// RolesFromContext returns the caller's flattened roles.
func RolesFromContext(ctx context.Context) (Roles, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}

// UnstructuredClaimsFromContext returns the non-standard claims.
func UnstructuredClaimsFromContext(ctx context.Context) (UnstructuredClaims, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	return claims.Unstructured, nil
}

// ClaimFromContext decodes one unstructured claim.
//
//	groups, err := auth.ClaimFromContext[[]string](r.Context(), "groups")
func ClaimFromContext[T any](ctx context.Context, name string) (T, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Claim[T](claims.Unstructured, name)
}

// CustomClaimsFromContext decodes the whole payload into T. A shape
// mismatch fails with [sserr.CodeValidationClaimShape].
func CustomClaimsFromContext[T any](ctx context.Context) (T, error) {
	var v T
	claims, err := requireClaims(ctx)
	if err != nil {
		return v, err
	}
	if err := claims.Decode(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// TraceIDFromContext returns the active OpenTelemetry trace ID, for
// correlating authentication events with request traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
