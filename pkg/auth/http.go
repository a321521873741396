package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// MiddlewareOption configures a request mediator.
type MiddlewareOption func(*middleware)

type middleware struct {
	policy *Policy
	guard  func(RequestInfo) bool
	logger *slog.Logger
}

// WithApplyGuard restricts the middleware to requests for which guard
// returns true. Other requests bypass authentication entirely and carry
// no claims.
func WithApplyGuard(guard func(RequestInfo) bool) MiddlewareOption {
	return func(m *middleware) { m.guard = guard }
}

// WithLogger sets the logger for denial and passthrough events. The
// default is slog.Default().
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *middleware) { m.logger = logger }
}

func newMiddleware(policy *Policy, opts []MiddlewareOption) *middleware {
	if policy == nil {
		panic("auth: middleware requires a non-nil Policy")
	}
	m := &middleware{policy: policy}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// decide runs the apply guard and the policy and logs the outcome. skip is
// true when the guard excluded the request.
func (m *middleware) decide(ctx context.Context, info RequestInfo, header string, present bool) (d Decision, skip bool) {
	if m.guard != nil && !m.guard(info) {
		return Decision{}, true
	}

	d = m.policy.Evaluate(ctx, info, header, present)
	switch d.Kind {
	case DecisionDeny:
		m.logger.DebugContext(ctx, "auth: request denied",
			"method", info.Method,
			"path", info.Path,
			"code", d.Err.Code,
			"error", d.Err,
		)
	case DecisionPassThrough:
		m.logger.DebugContext(ctx, "auth: request passed through without token",
			"method", info.Method,
			"path", info.Path,
		)
	}
	return d, false
}

// HTTPMiddleware authenticates requests with policy. Allowed requests reach
// next with [Claims] in their context; passthrough requests reach next
// without claims; denied requests receive 401 or 403 with a body governed
// by the policy's detailed-responses setting.
//
//	mux := http.NewServeMux()
//	mux.Handle("/private", auth.HTTPMiddleware(policy)(privateHandler))
func HTTPMiddleware(policy *Policy, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := newMiddleware(policy, opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values := r.Header.Values(HeaderAuthorization)
			header := ""
			if len(values) > 0 {
				header = values[0]
			}
			info := RequestInfo{Method: r.Method, Path: r.URL.Path}

			d, skip := m.decide(r.Context(), info, header, len(values) > 0)
			switch {
			case skip, d.Kind == DecisionPassThrough:
				next.ServeHTTP(w, r)
			case d.Kind == DecisionAllow:
				next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), d.Claims)))
			default:
				writeDenial(w, d)
			}
		})
	}
}

func writeDenial(w http.ResponseWriter, d Decision) {
	if d.Status() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="keycloak"`)
	}
	http.Error(w, d.Body(), d.Status())
}

// RolesHandler serves the caller's flattened roles as a JSON array of role
// objects. Requests without claims, e.g. passed through by
// [AlwaysPass], receive 401 with a body that follows the policy's
// detailed-responses setting, like a denial by the middleware itself.
//
//	mux.Handle("/private/roles", auth.HTTPMiddleware(policy)(auth.RolesHandler(policy)))
func RolesHandler(policy *Policy) http.Handler {
	if policy == nil {
		panic("auth: RolesHandler requires a non-nil Policy")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roles, err := RolesFromContext(r.Context())
		if err != nil {
			WriteError(w, err, policy.Detailed())
			return
		}
		if roles == nil {
			roles = Roles{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(roles)
	})
}

// WriteError renders an accessor or claim decoding error for handlers,
// using the error's status (e.g. 400 for a claim shape mismatch).
func WriteError(w http.ResponseWriter, err error, detailed bool) {
	writeDenial(w, Decision{Kind: DecisionDeny, Err: sserr.FromError(err), Detailed: detailed})
}

// PropagatingRoundTripper forwards the caller's bearer token to downstream
// services. Requests whose context holds no claims, or that already set an
// Authorization header, are sent unchanged.
//
//	client := &http.Client{Transport: auth.NewPropagatingRoundTripper(nil)}
//	resp, err := client.Do(req.WithContext(r.Context()))
type PropagatingRoundTripper struct {
	wrapped http.RoundTripper
}

// NewPropagatingRoundTripper wraps transport, or http.DefaultTransport when
// transport is nil.
func NewPropagatingRoundTripper(transport http.RoundTripper) *PropagatingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &PropagatingRoundTripper{wrapped: transport}
}

// RoundTrip implements http.RoundTripper.
func (t *PropagatingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.Token == "" || r.Header.Get(HeaderAuthorization) != "" {
		return t.wrapped.RoundTrip(r)
	}

	// RoundTrippers must not modify the caller's request.
	out := r.Clone(r.Context())
	out.Header.Set(HeaderAuthorization, BearerHeader(claims.Token.Value()))
	return t.wrapped.RoundTrip(out)
}
