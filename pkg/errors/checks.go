package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error.
// Returns the Error and true if successful, nil and false otherwise.
// This function traverses the error chain using errors.As, so an *Error
// wrapped with fmt.Errorf("...: %w", err) is still found.
//
// Example:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Debug("request denied", "code", e.Code, "details", e.Details)
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error.
// If the error is not an *Error or is nil, returns an empty string.
//
// Example:
//
//	switch errors.GetCode(err) {
//	case errors.CodeAuthenticationExpired:
//	    // prompt the client to refresh its token
//	case errors.CodeAuthorizationInsufficientRole:
//	    // show an access-denied page
//	}
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code.
// Returns false if the error is nil or not an *Error.
//
// Example:
//
//	if errors.HasCode(err, errors.CodeNotFoundClaim) {
//	    // the token simply does not carry the claim
//	}
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation checks if the error is a validation error (VAL_xxx).
// Claim shape mismatches and malformed configuration values fall here.
//
// Example:
//
//	if errors.IsValidation(err) {
//	    // return 400 Bad Request
//	}
func IsValidation(err error) bool { return hasCategory(err, "VAL") }

// IsAuthentication checks if the error is an authentication error
// (AUTH_xxx): a missing, malformed, expired or badly signed token.
// AUTHZ_xxx codes are a separate category and do not match.
//
// Example:
//
//	if errors.IsAuthentication(err) {
//	    // return 401 Unauthorized
//	}
func IsAuthentication(err error) bool { return hasCategory(err, "AUTH") }

// IsAuthorization checks if the error is an authorization error
// (AUTHZ_xxx), raised when a verified caller lacks a required role.
//
// Example:
//
//	if errors.IsAuthorization(err) {
//	    // return 403 Forbidden
//	}
func IsAuthorization(err error) bool { return hasCategory(err, "AUTHZ") }

// IsNotFound checks if the error is a not-found error (NF_xxx).
func IsNotFound(err error) bool { return hasCategory(err, "NF") }

// IsInternal checks if the error is an internal error (INT_xxx). These
// indicate a misconfigured middleware rather than a bad request.
func IsInternal(err error) bool { return hasCategory(err, "INT") }

// IsClientError checks if the error maps to a 4xx status, i.e. the
// request (not the server) is at fault. Returns false for nil and for
// errors that are not an *Error.
//
// Example:
//
//	if !errors.IsClientError(err) {
//	    logger.Error("auth middleware failure", "error", err)
//	}
func IsClientError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	s := e.HTTPStatus()
	return s >= 400 && s < 500
}
