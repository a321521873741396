package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the given code and message.
//
// Example:
//
//	err := errors.New(errors.CodeAuthenticationMissing, "no bearer token in request")
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeNotFoundClaim, "claim %q not found", name)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message. The wrapped error
// is available through Unwrap, errors.Is and errors.As.
// Returns nil if err is nil, so it is safe to call unconditionally.
//
// Example:
//
//	token, err := parser.Parse(raw, keyFunc)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeAuthenticationInvalid, "token is malformed")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a code and formatted message.
// Returns nil if err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validationf creates a CodeValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unauthorized creates a CodeAuthentication error. Prefer a specific AUTH
// code where one exists so clients can tell an expired token from a forged
// one.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a CodeAuthorization error.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// NotFoundf creates a CodeNotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Internalf creates a CodeInternal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// FromError converts any error to an *Error. An *Error anywhere in the
// chain is returned as is; any other error is wrapped as CodeInternal so
// that its text is never mistaken for a client-facing reason.
// Returns nil if err is nil.
//
// Example:
//
//	e := errors.FromError(err)
//	http.Error(w, e.Error(), e.HTTPStatus())
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
