// Package fixtures holds Keycloak-shaped claim sets and identifiers shared
// by the test suites.
package fixtures

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is the realm issuer URL used in test tokens.
	Issuer = "http://localhost:8080/realms/test"

	// Subject is the default sub claim.
	Subject = "f8c1d7a0-5b1e-4d0a-9d36-0b4a2c9b3e11"

	// Client is the authorized party and the resource_access key for
	// client roles.
	Client = "my-client"

	// OtherClient is a second resource_access entry.
	OtherClient = "account"

	// Username is the preferred_username claim, an unstructured field.
	Username = "alice"

	// Email is the email claim, an unstructured field.
	Email = "alice@example.com"
)

// Realm roles granted by Claims.
var RealmRoles = []string{"offline_access", "user", "admin"}

// Claims returns a full Keycloak access-token claim set issued at now and
// expiring in ten minutes. Callers may mutate the returned map freely.
func Claims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": Subject,
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
		"iss": Issuer,
		"aud": OtherClient,
		"jti": "3b241101-e2bb-4255-8caf-4136c566a962",
		"azp": Client,
		"realm_access": map[string]any{
			"roles": []any{"offline_access", "user", "admin"},
		},
		"resource_access": map[string]any{
			Client:      map[string]any{"roles": []any{"read", "write"}},
			OtherClient: map[string]any{"roles": []any{"manage-account"}},
		},
		"preferred_username": Username,
		"email":              Email,
		"email_verified":     true,
		"company_id":         42,
		"scope":              "openid profile email",
	}
}

// MinimalClaims returns only the mandatory claims.
func MinimalClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": Subject,
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
}
