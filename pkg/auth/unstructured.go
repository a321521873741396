package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// UnstructuredClaims holds every top-level claim that StandardClaims does
// not consume, kept as undecoded JSON until a caller asks for a type.
type UnstructuredClaims map[string]json.RawMessage

// DecodeUnstructuredClaims collects all non-standard claims from a verified
// payload.
func DecodeUnstructuredClaims(raw RawClaims) (UnstructuredClaims, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeAuthenticationClaims,
			"auth: token payload is not a JSON object")
	}
	return unstructuredFrom(fields), nil
}

func unstructuredFrom(fields map[string]json.RawMessage) UnstructuredClaims {
	u := make(UnstructuredClaims, len(fields))
	for name, value := range fields {
		if !slices.Contains(standardClaimNames, name) {
			u[name] = value
		}
	}
	return u
}

// Has reports whether the claim is present.
func (u UnstructuredClaims) Has(name string) bool {
	_, ok := u[name]
	return ok
}

// Names returns the claim names in lexical order.
func (u UnstructuredClaims) Names() []string {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get decodes the named claim into out, which must be a non-nil pointer.
// It fails with [sserr.CodeNotFoundClaim] when the claim is absent and
// [sserr.CodeValidationClaimShape] when the value does not fit out's type.
// A present null is a mismatch unless out can hold null (pointer, slice,
// map or interface), and a struct target must find every required field;
// see [RawClaims.Decode] for what counts as required. On failure out is
// left untouched.
func (u UnstructuredClaims) Get(name string, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.Newf(sserr.CodeInternal, "auth: Get(%q) requires a non-nil pointer", name)
	}

	value, ok := u[name]
	if !ok {
		return sserr.Newf(sserr.CodeNotFoundClaim, "auth: claim %q not found", name).
			WithDetail("claim", name)
	}

	return decodeShape(name, value, out)
}

// Claim is the generic form of [UnstructuredClaims.Get].
//
//	tenant, err := auth.Claim[string](claims.Unstructured, "tenant")
func Claim[T any](u UnstructuredClaims, name string) (T, error) {
	var v T
	if err := u.Get(name, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// shapeError reports a decode failure for the named claim (or, with name
// empty, for a custom claim shape) as a client error.
func shapeError(name string, err error) *sserr.Error {
	var typeErr *json.UnmarshalTypeError
	var detail string
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if name != "" && field != "" {
			field = name + "." + field
		} else if name != "" {
			field = name
		}
		detail = fmt.Sprintf("invalid type: JSON %s, expected %s", typeErr.Value, typeErr.Type)
		if field != "" {
			detail = fmt.Sprintf("field %q: %s", field, detail)
		}
	case name != "":
		detail = fmt.Sprintf("field %q: %v", name, err)
	default:
		detail = err.Error()
	}

	e := sserr.Wrapf(err, sserr.CodeValidationClaimShape, "auth: cannot decode claims: %s", detail)
	if name != "" {
		e = e.WithDetail("claim", name)
	}
	return e
}
