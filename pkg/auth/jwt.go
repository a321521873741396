package auth

import (
	"context"
	"crypto"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

const tracerName = "github.com/StricklySoft/keycloak-auth/pkg/auth"

// DefaultLeeway is the clock skew tolerated on exp, iat and nbf. It matches
// the customary default of JWT libraries; set 0 for strict comparison.
const DefaultLeeway = 60 * time.Second

// maxTokenSize bounds the compact token length; Keycloak access tokens with
// many client roles stay well below it.
const maxTokenSize = 8192

// Verifier checks a bearer token's signature and temporal claims against a
// single public key, typically the realm key of a Keycloak server. It does
// not fetch keys, and it does not interpret the payload beyond the
// registered time claims; decoding into [Claims] happens in [Policy].
//
// A Verifier is immutable after construction and safe for concurrent use
// by any number of goroutines.
//
// Example:
//
//	key, err := auth.ParsePublicKey([]byte(realmKeyBase64))
//	if err != nil {
//	    return err
//	}
//	v, err := auth.NewVerifier(key,
//	    auth.WithLeeway(30*time.Second),
//	    auth.WithIssuer("https://sso.example.com/realms/prod"),
//	)
type Verifier struct {
	key        crypto.PublicKey
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
	issuer     string
	audience   string
	tracer     trace.Tracer
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithAlgorithms restricts the accepted signing algorithms. The default is
// derived from the key type.
func WithAlgorithms(algs ...string) VerifierOption {
	return func(v *Verifier) { v.algorithms = slices.Clone(algs) }
}

// WithLeeway sets the tolerated clock skew. Negative values are treated as 0.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = max(d, 0) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithIssuer additionally requires iss to equal issuer.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithAudience additionally requires aud to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) { v.audience = audience }
}

// NewVerifier returns a Verifier for key. Supported key types are
// *rsa.PublicKey, *ecdsa.PublicKey and ed25519.PublicKey. Without
// [WithAlgorithms] a single algorithm is derived from the key type: RS256
// for RSA, ES256/ES384/ES512 by curve for ECDSA, and EdDSA for Ed25519.
//
// It fails with [sserr.CodeInternalConfiguration] when key is nil or
// unsupported, or when a requested algorithm cannot be verified with it.
//
// Example:
//
//	v, err := auth.NewVerifier(rsaKey, auth.WithAlgorithms("RS256"))
//	if err != nil {
//	    log.Fatal(err) // misconfiguration, not a request failure
//	}
func NewVerifier(key crypto.PublicKey, opts ...VerifierOption) (*Verifier, error) {
	if key == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration, "auth: verifier requires a public key")
	}

	v := &Verifier{
		key:    key,
		leeway: DefaultLeeway,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(v)
	}

	if len(v.algorithms) == 0 {
		algs, err := defaultAlgorithms(key)
		if err != nil {
			return nil, err
		}
		v.algorithms = algs
	}
	for _, alg := range v.algorithms {
		if err := checkAlgorithm(alg, key); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Algorithms returns the accepted signing algorithms.
func (v *Verifier) Algorithms() []string { return slices.Clone(v.algorithms) }

// Leeway returns the tolerated clock skew.
func (v *Verifier) Leeway() time.Duration { return v.leeway }

// Verify checks tokenStr and returns its payload. Rules:
//
//   - the header alg must be one of Algorithms(); "none" is never accepted
//   - the signature must verify against the key
//   - exp, when present, must be strictly after now minus leeway, so a
//     token expiring at exactly now is rejected when leeway is 0
//   - iat, when present, must not be after now plus leeway
//   - nbf, when present, must not be after now plus leeway
//
// A missing exp is not reported here; it surfaces as a claims decoding
// failure. Failures are *sserr.Error values with distinct AUTH codes.
// Verify performs no I/O and never logs.
//
// Example:
//
//	raw, err := v.Verify(ctx, token)
//	switch {
//	case sserr.HasCode(err, sserr.CodeAuthenticationExpired):
//	    // ask the client to refresh
//	case err != nil:
//	    return err
//	}
//	claims, err := auth.DecodeClaims(raw)
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (RawClaims, error) {
	_, span := startSpan(ctx, v.tracer, "auth.Verify")
	defer span.End()

	raw, err := v.verify(tokenStr)
	if err != nil {
		span.SetAttributes(attribute.String("auth.error_code", sserr.GetCode(err).String()))
		finishSpan(span, err)
		return nil, err
	}
	return raw, nil
}

func (v *Verifier) verify(tokenStr string) (RawClaims, error) {
	if tokenStr == "" {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token must not be empty")
	}
	if len(tokenStr) > maxTokenSize {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token exceeds maximum size")
	}

	parser := jwt.NewParser(v.parserOptions()...)

	unverified, parts, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil, classifyError(err)
	}
	alg, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(alg, "none") || !slices.Contains(v.algorithms, alg) {
		return nil, sserr.Newf(sserr.CodeAuthenticationAlgorithm,
			"auth: signing algorithm %q is not accepted", alg).
			WithDetail("accepted", v.Algorithms())
	}

	// golang-jwt requires now < exp+leeway, so a token expiring at exactly
	// now (leeway 0) is rejected.
	if _, err := parser.Parse(tokenStr, func(*jwt.Token) (any, error) { return v.key, nil }); err != nil {
		return nil, classifyError(err)
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token payload is malformed")
	}
	return RawClaims(payload), nil
}

func (v *Verifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.algorithms),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
		jwt.WithJSONNumber(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return opts
}

// classifyError maps golang-jwt errors onto AUTH codes. Order matters:
// signature failures wrap the key-type error, and claim failures are all
// wrapped in ErrTokenInvalidClaims.
func classifyError(err error) *sserr.Error {
	if err == nil {
		return nil
	}

	var ssError *sserr.Error
	if errors.As(err, &ssError) {
		return ssError
	}

	switch {
	case errors.Is(err, jwt.ErrInvalidKeyType):
		return sserr.Wrap(err, sserr.CodeAuthenticationAlgorithm, "auth: token algorithm does not match the key")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return sserr.Wrap(err, sserr.CodeAuthenticationSignature, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenExpired):
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return sserr.Wrap(err, sserr.CodeAuthenticationNotYetValid, "auth: token was issued in the future")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return sserr.Wrap(err, sserr.CodeAuthenticationNotYetValid, "auth: token is not yet valid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return sserr.Wrap(err, sserr.CodeAuthentication, "auth: token issuer is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return sserr.Wrap(err, sserr.CodeAuthentication, "auth: token audience is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is unverifiable")
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return sserr.Wrap(err, sserr.CodeAuthentication, "auth: token claims are invalid")
	}
	return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token validation failed")
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
