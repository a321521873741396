// Package auth authenticates requests carrying Keycloak-issued bearer tokens
// and enforces required realm and client roles before the request reaches
// application code.
//
// A [Verifier] checks a token's signature and temporal claims against a
// single configured public key. A [Policy] turns an Authorization header
// into a [Decision]: allow with decoded [Claims], deny with a coded error,
// or pass through unauthenticated. Mediators adapt the policy to net/http
// ([HTTPMiddleware]), gRPC ([UnaryServerInterceptor]) and gin
// ([GinMiddleware]); handlers read the claims back with the accessors in
// context.go.
//
// The engine performs no I/O after construction. Verifier and Policy values
// are immutable and safe for concurrent use.
package auth

import (
	"encoding/json"
	"log/slog"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// Secret is a string that redacts itself when printed, logged or
// marshaled. Bearer tokens are carried as Secrets.
type Secret string

const secretRedacted = "[REDACTED]"

// String implements fmt.Stringer.
func (s Secret) String() string { return secretRedacted }

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string { return secretRedacted }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(secretRedacted) }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Value returns the underlying string.
func (s Secret) Value() string { return string(s) }

// RawClaims is the verified JSON payload of a token.
type RawClaims []byte

// Decode unmarshals the payload into v, a pointer to a caller-defined
// claims shape. The payload must match the shape structurally, otherwise
// Decode fails with [sserr.CodeValidationClaimShape] (400 Bad Request) and
// leaves v untouched. A mismatch is any of:
//
//   - a JSON type that does not fit the field's Go type
//   - null for a field that cannot hold it (string, number, bool, struct)
//   - a missing required field
//
// Every exported field is required unless it is a pointer or interface, or
// its json tag carries omitempty or omitzero. Declare optional claims
// accordingly:
//
//	type MyClaims struct {
//	    Subject     string   `json:"sub"`
//	    CustomField string   `json:"custom_field"`
//	    Groups      []string `json:"groups,omitempty"`
//	    Tenant      *string  `json:"tenant"`
//	}
func (r RawClaims) Decode(v any) error {
	return decodeShape("", r, v)
}

// Claims is everything known about the caller of an allowed request.
type Claims struct {
	// Standard is the fixed Keycloak claim set.
	Standard StandardClaims

	// Unstructured holds all other top-level claims.
	Unstructured UnstructuredClaims

	// Roles is Standard.Roles(), computed once.
	Roles Roles

	// Raw is the verified payload.
	Raw RawClaims

	// Token is the bearer token the claims came from, kept so that it can
	// be forwarded to downstream services.
	Token Secret
}

// DecodeClaims builds Claims from a verified payload. Any failure carries
// [sserr.CodeAuthenticationClaims].
func DecodeClaims(raw RawClaims) (*Claims, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeAuthenticationClaims,
			"auth: token payload is not a JSON object")
	}

	standard, err := decodeStandard(raw, fields)
	if err != nil {
		return nil, err
	}
	return &Claims{
		Standard:     standard,
		Unstructured: unstructuredFrom(fields),
		Roles:        standard.Roles(),
		Raw:          raw,
	}, nil
}

// Subject returns the sub claim.
func (c *Claims) Subject() string {
	return c.Standard.Subject
}

// Decode unmarshals the full payload into a caller-defined shape.
func (c *Claims) Decode(v any) error {
	return c.Raw.Decode(v)
}

// LogValue implements slog.LogValuer, logging identity without the token.
func (c *Claims) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("sub", c.Standard.Subject),
		slog.String("azp", c.Standard.AuthorizedParty),
		slog.Int("roles", len(c.Roles)),
	)
}
