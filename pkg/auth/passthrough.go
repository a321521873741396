package auth

import (
	"strings"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// PassthroughPolicy decides what happens to a request that carries no
// Authorization header at all. It is consulted only in that case; a
// present but invalid header is always denied.
type PassthroughPolicy interface {
	// Pass reports whether the request should continue unauthenticated.
	Pass(RequestInfo) bool
}

// PassthroughFunc adapts a function to PassthroughPolicy.
type PassthroughFunc func(RequestInfo) bool

// Pass implements PassthroughPolicy.
func (f PassthroughFunc) Pass(r RequestInfo) bool { return f(r) }

// PassthroughMode names the built-in policies for configuration.
type PassthroughMode string

const (
	// AlwaysReturn denies header-less requests with 401.
	AlwaysReturn PassthroughMode = "always_return"

	// AlwaysPass lets header-less requests continue without claims.
	AlwaysPass PassthroughMode = "always_pass"
)

// Pass implements PassthroughPolicy.
func (m PassthroughMode) Pass(RequestInfo) bool {
	return m == AlwaysPass
}

// UnmarshalText accepts "always_return" or "always_pass", case-insensitive,
// with '-' as an alternative separator.
func (m *PassthroughMode) UnmarshalText(text []byte) error {
	mode := PassthroughMode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(text))), "-", "_"))
	switch mode {
	case AlwaysReturn, AlwaysPass:
		*m = mode
		return nil
	}
	return sserr.Newf(sserr.CodeValidationFormat,
		"auth: passthrough mode %q must be %q or %q", text, AlwaysReturn, AlwaysPass)
}

// RequestInfo is the transport-neutral view of a request used by apply
// guards and passthrough policies.
type RequestInfo struct {
	// Method is the HTTP method, or "GRPC" for gRPC calls.
	Method string

	// Path is the URL path, or the full gRPC method name.
	Path string
}
