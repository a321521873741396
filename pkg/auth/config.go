package auth

import (
	"crypto"
	"time"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// Config is the declarative middleware configuration. It carries tags for
// the layered loader in pkg/config:
//
//	cfg := config.MustLoad[auth.Config](config.New().WithEnvPrefix("KEYCLOAK"))
//	policy, err := auth.NewPolicyFromConfig(cfg)
//
// Exactly one of PublicKey and PublicKeyFile must be set. Leeway is read
// as a Go duration string ("60s") from YAML and the environment.
type Config struct {
	// PublicKey is the realm's verification key as PEM, bare base64 DER or
	// JWK JSON.
	PublicKey string `env:"PUBLIC_KEY" yaml:"public_key" json:"public_key"`

	// PublicKeyFile is a path to a file holding PublicKey.
	PublicKeyFile string `env:"PUBLIC_KEY_FILE" yaml:"public_key_file" json:"public_key_file"`

	// RequiredRoles must all be granted. From the environment:
	// "realm:admin,client:billing:read".
	RequiredRoles Roles `env:"REQUIRED_ROLES" yaml:"required_roles" json:"required_roles"`

	// DetailedResponses puts the denial reason in response bodies.
	DetailedResponses bool `env:"DETAILED_RESPONSES" envDefault:"true" yaml:"detailed_responses" json:"detailed_responses"`

	// Passthrough governs requests with no Authorization header.
	Passthrough PassthroughMode `env:"PASSTHROUGH" envDefault:"always_return" yaml:"passthrough" json:"passthrough"`

	// Leeway is the tolerated clock skew on exp, iat and nbf.
	Leeway time.Duration `env:"LEEWAY" envDefault:"60s" yaml:"leeway" json:"leeway"`

	// Algorithms overrides the signing algorithms derived from the key.
	Algorithms []string `env:"ALGORITHMS" yaml:"algorithms" json:"algorithms"`

	// Issuer, when set, must equal the token's iss.
	Issuer string `env:"ISSUER" yaml:"issuer" json:"issuer"`

	// Audience, when set, must appear in the token's aud.
	Audience string `env:"AUDIENCE" yaml:"audience" json:"audience"`
}

// DefaultConfig returns the defaults applied by the loader: detailed
// responses, always-return passthrough, 60s leeway and no required roles.
func DefaultConfig() Config {
	return Config{
		DetailedResponses: true,
		Passthrough:       AlwaysReturn,
		Leeway:            DefaultLeeway,
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	switch {
	case c.PublicKey == "" && c.PublicKeyFile == "":
		return sserr.New(sserr.CodeValidationRequired, "auth: one of public_key or public_key_file is required")
	case c.PublicKey != "" && c.PublicKeyFile != "":
		return sserr.New(sserr.CodeValidation, "auth: public_key and public_key_file are mutually exclusive")
	case c.Leeway < 0:
		return sserr.Newf(sserr.CodeValidation, "auth: leeway %s must not be negative", c.Leeway)
	}
	if c.Passthrough != "" {
		var mode PassthroughMode
		if err := mode.UnmarshalText([]byte(c.Passthrough)); err != nil {
			return err
		}
	}
	return c.RequiredRoles.Validate()
}

// LoadKey parses the configured verification key.
func (c *Config) LoadKey() (crypto.PublicKey, error) {
	if c.PublicKeyFile != "" {
		return LoadPublicKeyFile(c.PublicKeyFile)
	}
	return ParsePublicKey([]byte(c.PublicKey))
}

// NewPolicyFromConfig validates cfg and builds its verifier and policy.
func NewPolicyFromConfig(cfg Config) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: invalid configuration")
	}
	key, err := cfg.LoadKey()
	if err != nil {
		return nil, err
	}

	verifierOpts := []VerifierOption{WithLeeway(cfg.Leeway)}
	if len(cfg.Algorithms) > 0 {
		verifierOpts = append(verifierOpts, WithAlgorithms(cfg.Algorithms...))
	}
	if cfg.Issuer != "" {
		verifierOpts = append(verifierOpts, WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		verifierOpts = append(verifierOpts, WithAudience(cfg.Audience))
	}
	verifier, err := NewVerifier(key, verifierOpts...)
	if err != nil {
		return nil, err
	}

	passthrough := AlwaysReturn
	if cfg.Passthrough != "" {
		if err := passthrough.UnmarshalText([]byte(cfg.Passthrough)); err != nil {
			return nil, err
		}
	}
	return NewPolicy(verifier,
		WithRequiredRoles(cfg.RequiredRoles...),
		WithDetailedResponses(cfg.DetailedResponses),
		WithPassthrough(passthrough),
	)
}
