package auth

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// DecisionKind is the outcome of evaluating a request.
type DecisionKind int

const (
	// DecisionAllow admits the request with claims attached.
	DecisionAllow DecisionKind = iota + 1

	// DecisionDeny rejects the request.
	DecisionDeny

	// DecisionPassThrough admits the request without claims.
	DecisionPassThrough
)

// String returns "allow", "deny" or "passthrough".
func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionPassThrough:
		return "passthrough"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is the result of [Policy.Evaluate].
type Decision struct {
	Kind DecisionKind

	// Claims is set for DecisionAllow.
	Claims *Claims

	// Err is set for DecisionDeny.
	Err *sserr.Error

	// Detailed reports whether Err's text may be sent to the client.
	Detailed bool
}

// Allowed reports whether the request may reach the handler.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow || d.Kind == DecisionPassThrough
}

// Status is the HTTP status for a denial: 403 for missing roles, 401 for
// everything else. Allowed decisions report 200.
//
// Example:
//
//	d := policy.Evaluate(ctx, info, "Bearer "+token, true)
//	d.Status() // 403 when the token lacks a required role
func (d Decision) Status() int {
	if d.Kind != DecisionDeny || d.Err == nil {
		return http.StatusOK
	}
	return d.Err.HTTPStatus()
}

// Body is the response body for a denial. Without detailed responses it is
// the fixed status line, e.g. "401 Unauthorized", regardless of cause.
func (d Decision) Body() string {
	if d.Kind != DecisionDeny || d.Err == nil {
		return ""
	}
	if d.Detailed {
		return d.Err.Error()
	}
	return statusLine(d.Status())
}

func statusLine(status int) string {
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

// Policy evaluates Authorization headers against a verifier and a set of
// required roles. It is the transport-neutral core shared by the net/http,
// gRPC and gin mediators: each of them extracts the header, calls
// [Policy.Evaluate] and translates the [Decision] into its own response.
//
// Policy is immutable after construction and safe for concurrent use.
//
// Example:
//
//	policy, err := auth.NewPolicy(verifier,
//	    auth.WithRequiredRoles(auth.RealmRole("admin"), auth.ClientRole("billing", "viewer")),
//	    auth.WithDetailedResponses(false),
//	    auth.WithPassthrough(auth.AlwaysPass),
//	)
//	if err != nil {
//	    return err
//	}
//	mux.Handle("/admin/", auth.HTTPMiddleware(policy)(adminHandler))
type Policy struct {
	verifier    *Verifier
	required    Roles
	detailed    bool
	passthrough PassthroughPolicy
	tracer      trace.Tracer
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithRequiredRoles sets roles that must all be granted. An empty set
// admits any authenticated caller.
func WithRequiredRoles(roles ...Role) PolicyOption {
	return func(p *Policy) { p.required = append(Roles(nil), roles...) }
}

// WithDetailedResponses controls whether denial bodies carry the reason.
// The default is true.
func WithDetailedResponses(detailed bool) PolicyOption {
	return func(p *Policy) { p.detailed = detailed }
}

// WithPassthrough sets the policy for requests without an Authorization
// header. The default is [AlwaysReturn].
func WithPassthrough(pp PassthroughPolicy) PolicyOption {
	return func(p *Policy) { p.passthrough = pp }
}

// NewPolicy returns a Policy using verifier. Without options it requires
// no roles, sends detailed denial bodies and rejects requests that carry
// no Authorization header ([AlwaysReturn]).
//
// It fails with [sserr.CodeInternalConfiguration] when verifier is nil or
// a required role is invalid, e.g. a client role with an empty client.
func NewPolicy(verifier *Verifier, opts ...PolicyOption) (*Policy, error) {
	if verifier == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration, "auth: policy requires a verifier")
	}
	p := &Policy{
		verifier:    verifier,
		detailed:    true,
		passthrough: AlwaysReturn,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.passthrough == nil {
		p.passthrough = AlwaysReturn
	}
	if err := p.required.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: invalid required roles")
	}
	return p, nil
}

// RequiredRoles returns a copy of the configured roles.
func (p *Policy) RequiredRoles() Roles { return append(Roles(nil), p.required...) }

// Detailed reports whether denial bodies carry the reason.
func (p *Policy) Detailed() bool { return p.detailed }

// Evaluate decides a request from its Authorization header. present is
// false when the request has no such header at all. Steps:
//
//  1. no header: the passthrough policy passes or denies with AUTH_004
//  2. not "Bearer <token>": deny with AUTH_005
//  3. verification failure: deny with the verifier's code
//  4. claims decoding failure: deny with AUTH_009
//  5. any required role missing: deny with AUTHZ_002
//  6. allow with the decoded claims
//
// The first failing step decides; later steps are not run. Evaluate never
// writes a response, so callers choose how to render the Decision.
//
// Example:
//
//	header, present := r.Header["Authorization"]
//	d := policy.Evaluate(ctx, auth.RequestInfo{Method: r.Method, Path: r.URL.Path},
//	    strings.Join(header, ","), present)
//	if !d.Allowed() {
//	    http.Error(w, d.Body(), d.Status())
//	    return
//	}
func (p *Policy) Evaluate(ctx context.Context, info RequestInfo, header string, present bool) Decision {
	ctx, span := startSpan(ctx, p.tracer, "auth.Evaluate")
	defer span.End()

	d := p.evaluate(ctx, info, header, present)
	span.SetAttributes(attribute.String("auth.decision", d.Kind.String()))
	if d.Err != nil {
		span.SetAttributes(attribute.String("auth.error_code", d.Err.Code.String()))
		finishSpan(span, d.Err)
	}
	if d.Claims != nil {
		span.SetAttributes(attribute.String("auth.subject", d.Claims.Subject()))
	}
	return d
}

func (p *Policy) evaluate(ctx context.Context, info RequestInfo, header string, present bool) Decision {
	if !present {
		if p.passthrough.Pass(info) {
			return Decision{Kind: DecisionPassThrough}
		}
		return p.deny(sserr.New(sserr.CodeAuthenticationMissing, "auth: no bearer token in request"))
	}

	token, err := ParseAuthorizationHeader(header)
	if err != nil {
		return p.deny(sserr.FromError(err))
	}

	raw, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return p.deny(sserr.FromError(err))
	}

	claims, err := DecodeClaims(raw)
	if err != nil {
		return p.deny(sserr.FromError(err))
	}
	claims.Token = Secret(token)

	if missing := claims.Standard.MissingRoles(p.required); len(missing) > 0 {
		return p.deny(sserr.Newf(sserr.CodeAuthorizationInsufficientRole,
			"auth: missing required roles: %s", missing).
			WithDetail("missing", missing.Strings()))
	}
	return Decision{Kind: DecisionAllow, Claims: claims}
}

func (p *Policy) deny(err *sserr.Error) Decision {
	return Decision{Kind: DecisionDeny, Err: err, Detailed: p.detailed}
}
