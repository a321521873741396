package errors

// Code is a machine-readable error code of the form CATEGORY_XXX. Codes are
// stable once assigned so that clients may branch on them.
type Code string

// Error code categories:
//
//	VAL_xxx   - claim or input shape errors (400 Bad Request)
//	AUTH_xxx  - authentication errors (401 Unauthorized)
//	AUTHZ_xxx - authorization errors (403 Forbidden)
//	NF_xxx    - not found errors (404 Not Found)
//	INT_xxx   - internal errors (500 Internal Server Error)
const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required configuration field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a value has an invalid textual format,
	// for example an unparseable role or duration.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationClaimShape indicates a claim exists but cannot be
	// converted to the requested type.
	CodeValidationClaimShape Code = "VAL_004"

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token's exp is in the past.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the token is structurally malformed.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationMissing indicates the request carried no token.
	CodeAuthenticationMissing Code = "AUTH_004"

	// CodeAuthenticationMalformedHeader indicates the Authorization header
	// is present but is not of the form "Bearer <token>".
	CodeAuthenticationMalformedHeader Code = "AUTH_005"

	// CodeAuthenticationSignature indicates the signature does not verify
	// against the configured key.
	CodeAuthenticationSignature Code = "AUTH_006"

	// CodeAuthenticationNotYetValid indicates iat or nbf lies in the future.
	CodeAuthenticationNotYetValid Code = "AUTH_007"

	// CodeAuthenticationAlgorithm indicates the token's signing algorithm is
	// not accepted or does not match the configured key.
	CodeAuthenticationAlgorithm Code = "AUTH_008"

	// CodeAuthenticationClaims indicates the verified payload could not be
	// decoded into the standard claim set.
	CodeAuthenticationClaims Code = "AUTH_009"

	// CodeAuthenticationAbsent indicates claims were requested from a request
	// that was never authenticated.
	CodeAuthenticationAbsent Code = "AUTH_010"

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationInsufficientRole indicates the token lacks at least
	// one required role.
	CodeAuthorizationInsufficientRole Code = "AUTHZ_002"

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundClaim indicates a named claim is not present in the token.
	CodeNotFoundClaim Code = "NF_002"

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates the middleware was configured
	// incorrectly, for example with an unusable public key.
	CodeInternalConfiguration Code = "INT_003"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore (e.g. "AUTHZ").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
