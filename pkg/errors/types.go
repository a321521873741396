package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// Error is the structured error returned by every package in this module.
// It carries a machine-readable Code, a human-readable Message, an optional
// underlying Cause, and Details for structured context.
//
// Values are treated as immutable once returned: WithDetail and WithDetails
// return modified copies, so an *Error may be shared between goroutines.
//
// Example:
//
//	err := errors.Newf(errors.CodeAuthorizationInsufficientRole,
//	    "missing required roles: %s", missing).
//	    WithDetail("missing", missing.Strings())
type Error struct {
	// Code identifies the failure class, e.g. "AUTH_002".
	Code Code

	// Message is the human-readable description. It is only exposed to
	// clients when detailed responses are enabled.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details carries structured context such as the missing roles or the
	// offending claim name.
	Details map[string]any
}

// Error renders "CODE: message" followed by the cause when present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause so errors.Is and errors.As can inspect the chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for the error's category:
//
//	VAL   -> 400 Bad Request
//	AUTH  -> 401 Unauthorized
//	AUTHZ -> 403 Forbidden
//	NF    -> 404 Not Found
//	other -> 500 Internal Server Error
//
// Mediators use it to choose between 401 and 403 for a denial, and
// handlers use it through WriteError for claim access failures.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of e with details merged over the existing
// set. Keys in details win over existing keys. The receiver is not
// modified.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &Error{Code: e.Code, Message: e.Message, Cause: e.Cause, Details: merged}
}

// WithDetail returns a copy of e with a single detail added.
//
// Example:
//
//	return errors.New(errors.CodeAuthenticationClaims, "missing claim").
//	    WithDetail("claim", "exp")
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// Format implements fmt.Formatter. %+v prints code, message, details and the
// cause chain; %v and %s print Error().
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
