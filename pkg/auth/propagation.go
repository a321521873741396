package auth

import (
	"strings"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// HeaderAuthorization is the header (and gRPC metadata key) carrying the
// bearer token, in canonical lower case.
const HeaderAuthorization = "authorization"

const bearerScheme = "Bearer"

// ParseAuthorizationHeader extracts the token from "Bearer <token>". The
// scheme is matched case-insensitively and surrounding whitespace is
// ignored. Anything else fails with
// [sserr.CodeAuthenticationMalformedHeader].
func ParseAuthorizationHeader(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", sserr.New(sserr.CodeAuthenticationMalformedHeader,
			"auth: authorization header must use the Bearer scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", sserr.New(sserr.CodeAuthenticationMalformedHeader,
			"auth: authorization header carries no single bearer token")
	}
	return token, nil
}

// ExtractBearerToken is the lenient form of ParseAuthorizationHeader,
// returning "" when the header is not a bearer credential.
func ExtractBearerToken(header string) string {
	token, err := ParseAuthorizationHeader(header)
	if err != nil {
		return ""
	}
	return token
}

// BearerHeader formats token as an Authorization header value.
func BearerHeader(token string) string {
	return bearerScheme + " " + token
}
