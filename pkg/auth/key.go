package auth

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// ParsePublicKey decodes a verification key. Accepted forms:
//
//   - a PEM "PUBLIC KEY", "RSA PUBLIC KEY" or "CERTIFICATE" block
//   - the bare base64 DER shown in the Keycloak realm keys console
//   - a single JWK, or a JWK set holding exactly one signing key (the
//     realm's certs endpoint document)
//
// Supported key types are RSA, ECDSA and Ed25519.
func ParsePublicKey(data []byte) (crypto.PublicKey, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, sserr.New(sserr.CodeInternalConfiguration, "auth: public key is empty")
	case trimmed[0] == '{':
		return parseJWK(trimmed)
	case !bytes.HasPrefix(trimmed, []byte("-----BEGIN")):
		der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(trimmed)), ""))
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
				"auth: public key is neither PEM, base64 DER nor JWK")
		}
		trimmed = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	}

	if key, err := jwt.ParseRSAPublicKeyFromPEM(trimmed); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(trimmed); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseEdPublicKeyFromPEM(trimmed); err == nil {
		return key, nil
	}
	return nil, sserr.New(sserr.CodeInternalConfiguration,
		"auth: public key is malformed or of an unsupported type")
}

// LoadPublicKeyFile reads and parses a key file.
func LoadPublicKeyFile(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"auth: failed to read public key file %q", path)
	}
	return ParsePublicKey(data)
}

func parseJWK(data []byte) (crypto.PublicKey, error) {
	var doc struct {
		Keys json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: malformed JWK")
	}

	var jwk jose.JSONWebKey
	if doc.Keys != nil {
		var set jose.JSONWebKeySet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: malformed JWK set")
		}
		signing := slices.DeleteFunc(set.Keys, func(k jose.JSONWebKey) bool {
			return k.Use != "" && k.Use != "sig"
		})
		if len(signing) != 1 {
			return nil, sserr.Newf(sserr.CodeInternalConfiguration,
				"auth: JWK set must hold exactly one signing key, found %d", len(signing))
		}
		jwk = signing[0]
	} else if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "auth: malformed JWK")
	}

	if !jwk.IsPublic() {
		jwk = jwk.Public()
	}
	switch key := jwk.Key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return key, nil
	default:
		return nil, sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: JWK %q is not an RSA, EC or Ed25519 public key", jwk.KeyID)
	}
}

// defaultAlgorithms picks the algorithms a key can verify when none are
// configured. RSA keys default to RS256, Keycloak's realm default.
func defaultAlgorithms(key crypto.PublicKey) ([]string, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return []string{jwt.SigningMethodRS256.Alg()}, nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return []string{jwt.SigningMethodES256.Alg()}, nil
		case elliptic.P384():
			return []string{jwt.SigningMethodES384.Alg()}, nil
		case elliptic.P521():
			return []string{jwt.SigningMethodES512.Alg()}, nil
		}
		return nil, sserr.New(sserr.CodeInternalConfiguration, "auth: unsupported ECDSA curve")
	case ed25519.PublicKey:
		return []string{jwt.SigningMethodEdDSA.Alg()}, nil
	default:
		return nil, sserr.Newf(sserr.CodeInternalConfiguration, "auth: unsupported public key type %T", key)
	}
}

// checkAlgorithm rejects algorithms the key type cannot verify, including
// every HMAC and "none".
func checkAlgorithm(alg string, key crypto.PublicKey) error {
	var ok bool
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		_, ok = key.(*rsa.PublicKey)
	case strings.HasPrefix(alg, "ES"):
		_, ok = key.(*ecdsa.PublicKey)
	case alg == jwt.SigningMethodEdDSA.Alg():
		_, ok = key.(ed25519.PublicKey)
	}
	if !ok || jwt.GetSigningMethod(alg) == nil {
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: algorithm %q cannot be verified with a %T key", alg, key)
	}
	return nil
}
