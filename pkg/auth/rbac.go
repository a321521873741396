package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// RoleKind distinguishes realm-wide roles from roles scoped to one client.
type RoleKind string

const (
	// RoleKindRealm is a role granted under realm_access.
	RoleKindRealm RoleKind = "realm"

	// RoleKindClient is a role granted under resource_access.<client>.
	RoleKindClient RoleKind = "client"
)

// Role names a single Keycloak role. Client is empty for realm roles.
//
// Role is a comparable value type; two roles match only when all fields are
// equal. There is no wildcard, prefix or composite-role expansion.
//
// Text form:  "realm:<name>" or "client:<client>:<name>"
// JSON form:  {"type":"realm","role":"<name>"} or
// {"type":"client","client":"<client>","role":"<name>"}
type Role struct {
	Kind   RoleKind
	Client string
	Name   string
}

// RealmRole returns the realm role called name.
func RealmRole(name string) Role {
	return Role{Kind: RoleKindRealm, Name: name}
}

// ClientRole returns the role called name on client.
func ClientRole(client, name string) Role {
	return Role{Kind: RoleKindClient, Client: client, Name: name}
}

// Matches reports whether possessed grants r.
func (r Role) Matches(possessed Role) bool {
	return r == possessed
}

// String returns the text form of r.
func (r Role) String() string {
	if r.Kind == RoleKindClient {
		return string(RoleKindClient) + ":" + r.Client + ":" + r.Name
	}
	return string(RoleKindRealm) + ":" + r.Name
}

// Validate checks that r is well formed.
func (r Role) Validate() error {
	switch r.Kind {
	case RoleKindRealm:
		if r.Client != "" {
			return sserr.Newf(sserr.CodeValidationFormat, "auth: realm role %q must not name a client", r.Name)
		}
	case RoleKindClient:
		if r.Client == "" {
			return sserr.Newf(sserr.CodeValidationFormat, "auth: client role %q has no client", r.Name)
		}
		if strings.Contains(r.Client, ":") {
			return sserr.Newf(sserr.CodeValidationFormat, "auth: client id %q must not contain ':'", r.Client)
		}
	default:
		return sserr.Newf(sserr.CodeValidationFormat, "auth: unknown role type %q", r.Kind)
	}
	if r.Name == "" {
		return sserr.New(sserr.CodeValidationFormat, "auth: role name must not be empty")
	}
	return nil
}

// ParseRole parses the text form produced by [Role.String].
func ParseRole(s string) (Role, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Role{}, sserr.Newf(sserr.CodeValidationFormat,
			"auth: role %q must be realm:<role> or client:<client>:<role>", s)
	}

	var r Role
	switch RoleKind(kind) {
	case RoleKindRealm:
		r = RealmRole(rest)
	case RoleKindClient:
		client, name, ok := strings.Cut(rest, ":")
		if !ok {
			return Role{}, sserr.Newf(sserr.CodeValidationFormat,
				"auth: client role %q must be client:<client>:<role>", s)
		}
		r = ClientRole(client, name)
	default:
		return Role{}, sserr.Newf(sserr.CodeValidationFormat, "auth: unknown role type %q in %q", kind, s)
	}
	if err := r.Validate(); err != nil {
		return Role{}, err
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which lets roles be
// configured from environment variables.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type roleDocument struct {
	Type   RoleKind `json:"type" yaml:"type"`
	Client string   `json:"client,omitempty" yaml:"client,omitempty"`
	Role   string   `json:"role" yaml:"role"`
}

func (d roleDocument) role() (Role, error) {
	r := Role{Kind: d.Type, Client: d.Client, Name: d.Role}
	return r, r.Validate()
}

// MarshalJSON encodes r as a tagged object.
func (r Role) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(roleDocument{Type: r.Kind, Client: r.Client, Role: r.Name})
}

// UnmarshalJSON accepts the tagged object or the text form as a string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return r.UnmarshalText([]byte(text))
	}

	var doc roleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return sserr.Wrap(err, sserr.CodeValidationFormat, "auth: role must be an object or a string")
	}
	parsed, err := doc.role()
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalYAML accepts either a scalar in text form or a mapping with
// type, client and role keys.
func (r *Role) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return r.UnmarshalText([]byte(node.Value))
	case yaml.MappingNode:
		var doc roleDocument
		if err := node.Decode(&doc); err != nil {
			return sserr.Wrap(err, sserr.CodeValidationFormat, "auth: invalid role mapping")
		}
		parsed, err := doc.role()
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	default:
		return sserr.Newf(sserr.CodeValidationFormat, "auth: role at line %d must be a string or a mapping", node.Line)
	}
}

// Roles is an ordered list of roles.
type Roles []Role

// Contains reports whether any role in rs matches r.
func (rs Roles) Contains(r Role) bool {
	for _, possessed := range rs {
		if r.Matches(possessed) {
			return true
		}
	}
	return false
}

// Strings returns the text form of each role.
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// String joins the text forms with commas, matching the env var format.
func (rs Roles) String() string {
	return strings.Join(rs.Strings(), ",")
}

// Validate checks every role in rs.
func (rs Roles) Validate() error {
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeValidationFormat, fmt.Sprintf("auth: role %d", i))
		}
	}
	return nil
}
