package auth

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// Access is a Keycloak role grant block, as found under realm_access and
// each entry of resource_access.
type Access struct {
	Roles []string `json:"roles"`
}

// Audience is the aud claim. Keycloak emits a bare string for a single
// audience and an array otherwise; both decode to a slice.
type Audience []string

// UnmarshalJSON accepts a string or an array of strings.
func (a *Audience) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*a = Audience{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

// MarshalJSON emits a bare string when a holds exactly one value.
func (a Audience) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// Contains reports whether aud lists s.
func (a Audience) Contains(s string) bool {
	return slices.Contains(a, s)
}

// StandardClaims is the fixed claim set every Keycloak access token
// carries. Subject, ExpiresAt and IssuedAt are mandatory.
type StandardClaims struct {
	Subject         string            `json:"sub"`
	ExpiresAt       *jwt.NumericDate  `json:"exp"`
	IssuedAt        *jwt.NumericDate  `json:"iat"`
	Issuer          string            `json:"iss,omitempty"`
	Audience        Audience          `json:"aud,omitempty"`
	ID              string            `json:"jti,omitempty"`
	AuthorizedParty string            `json:"azp,omitempty"`
	RealmAccess     *Access           `json:"realm_access,omitempty"`
	ResourceAccess  map[string]Access `json:"resource_access,omitempty"`
}

// standardClaimNames lists the top-level keys consumed by StandardClaims.
var standardClaimNames = []string{
	"sub", "exp", "iat", "iss", "aud", "jti", "azp", "realm_access", "resource_access",
}

var requiredClaimNames = []string{"sub", "exp", "iat"}

// DecodeStandardClaims decodes the standard claim set from a verified
// payload. A missing or null sub, exp or iat fails with
// [sserr.CodeAuthenticationClaims]; it is never defaulted.
func DecodeStandardClaims(raw RawClaims) (StandardClaims, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return StandardClaims{}, sserr.Wrap(err, sserr.CodeAuthenticationClaims,
			"auth: token payload is not a JSON object")
	}
	return decodeStandard(raw, fields)
}

func decodeStandard(raw RawClaims, fields map[string]json.RawMessage) (StandardClaims, error) {
	for _, name := range requiredClaimNames {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return StandardClaims{}, sserr.Newf(sserr.CodeAuthenticationClaims,
				"auth: missing required claim %q", name).WithDetail("claim", name)
		}
	}

	var sc StandardClaims
	if err := json.Unmarshal(raw, &sc); err != nil {
		return StandardClaims{}, sserr.Wrap(err, sserr.CodeAuthenticationClaims,
			"auth: failed to decode standard claims")
	}
	return sc, nil
}

// Expiry returns exp as a time.
func (c StandardClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAtTime returns iat as a time.
func (c StandardClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// HasRole reports whether the token grants r: a realm role must appear in
// realm_access.roles, a client role in resource_access[r.Client].roles.
func (c StandardClaims) HasRole(r Role) bool {
	switch r.Kind {
	case RoleKindRealm:
		return c.RealmAccess != nil && slices.Contains(c.RealmAccess.Roles, r.Name)
	case RoleKindClient:
		access, ok := c.ResourceAccess[r.Client]
		return ok && slices.Contains(access.Roles, r.Name)
	default:
		return false
	}
}

// Roles flattens every grant in the token: realm roles in token order, then
// client roles grouped by client id in lexical order.
func (c StandardClaims) Roles() Roles {
	var out Roles
	if c.RealmAccess != nil {
		for _, name := range c.RealmAccess.Roles {
			out = append(out, RealmRole(name))
		}
	}

	clients := make([]string, 0, len(c.ResourceAccess))
	for client := range c.ResourceAccess {
		clients = append(clients, client)
	}
	slices.Sort(clients)
	for _, client := range clients {
		for _, name := range c.ResourceAccess[client].Roles {
			out = append(out, ClientRole(client, name))
		}
	}
	return out
}

// MissingRoles returns the roles in required that the token does not grant,
// preserving their order.
func (c StandardClaims) MissingRoles(required Roles) Roles {
	var missing Roles
	for _, r := range required {
		if !c.HasRole(r) {
			missing = append(missing, r)
		}
	}
	return missing
}
