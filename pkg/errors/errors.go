// Package errors defines the structured error type used throughout the
// keycloak-auth module. Every failure raised while verifying a bearer token,
// decoding its claims, or enforcing required roles is an *Error carrying a
// stable machine-readable code.
//
// # Categories
//
// The category prefix of a code decides how the failure is rendered to the
// caller:
//
//   - VAL: a claim or configuration value has the wrong shape (400)
//   - AUTH: the request did not prove who it is (401)
//   - AUTHZ: the caller is known but lacks a required role (403)
//   - NF: a requested claim does not exist (404)
//   - INT: the middleware itself is misconfigured (500)
//
// # Usage
//
//	err := errors.New(errors.CodeAuthenticationMissing, "no bearer token")
//
//	if errors.IsAuthorization(err) {
//	    // respond with 403
//	}
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Debug("request denied", "code", e.Code, "error", e)
//	}
package errors
