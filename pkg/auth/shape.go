package auth

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

var (
	jsonNull            = []byte("null")
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// decodeShape decodes data into a fresh value of out's element type and
// stores it in out only if the whole value fits. On top of encoding/json's
// type checks it rejects:
//
//   - null where the target cannot hold null (string, number, bool, struct)
//   - an object missing a field the target struct requires
//
// A struct field is required unless it is a pointer or interface, or its
// json tag carries omitempty or omitzero. Types with their own
// UnmarshalJSON decide for themselves. name is the claim being read, or ""
// for a whole-payload shape; it prefixes field paths in errors.
func decodeShape(name string, data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.Newf(sserr.CodeInternal, "auth: decoding claims requires a non-nil pointer, got %T", out)
	}

	target := rv.Elem().Type()
	fresh := reflect.New(target)
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return shapeError(name, err)
	}
	if e := checkShape(name, data, target); e != nil {
		if name != "" {
			e = e.WithDetail("claim", name)
		}
		return e
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// checkShape walks data alongside t. data has already decoded into t, so
// only the cases encoding/json lets through silently are checked.
func checkShape(path string, data []byte, t reflect.Type) *sserr.Error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		if nullable(t) {
			return nil
		}
		return nullError(path, t)
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if hasCustomDecoding(t) || len(data) == 0 {
		return nil
	}

	switch {
	case t.Kind() == reflect.Struct && data[0] == '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return shapeError(path, err)
		}
		return checkStruct(path, fields, t)

	case (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && data[0] == '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return shapeError(path, err)
		}
		for i, elem := range elems {
			if e := checkShape(fmt.Sprintf("%s[%d]", path, i), elem, t.Elem()); e != nil {
				return e
			}
		}

	case t.Kind() == reflect.Map && data[0] == '{':
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return shapeError(path, err)
		}
		for key, entry := range entries {
			if e := checkShape(joinFieldPath(path, key), entry, t.Elem()); e != nil {
				return e
			}
		}
	}
	return nil
}

func checkStruct(path string, fields map[string]json.RawMessage, t reflect.Type) *sserr.Error {
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		// Fields of an untagged embedded struct are promoted into the
		// enclosing object.
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			if e := checkStruct(path, fields, sf.Type); e != nil {
				return e
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		fieldPath := joinFieldPath(path, name)
		value, ok := lookupField(fields, name)
		if !ok {
			if optionalField(sf.Type, opts) {
				continue
			}
			return sserr.Newf(sserr.CodeValidationClaimShape,
				"auth: cannot decode claims: missing field %q", fieldPath).
				WithDetail("field", fieldPath)
		}
		if e := checkShape(fieldPath, value, sf.Type); e != nil {
			return e
		}
	}
	return nil
}

// lookupField matches keys the way encoding/json does: exact first, then
// case-insensitively.
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := fields[name]; ok {
		return v, true
	}
	for key, v := range fields {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	return nil, false
}

func optionalField(t reflect.Type, opts string) bool {
	for opt := range strings.SplitSeq(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			return true
		}
	}
	return t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface
}

func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return reflect.PointerTo(t).Implements(jsonUnmarshalerType)
}

func hasCustomDecoding(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return pt.Implements(jsonUnmarshalerType) || pt.Implements(textUnmarshalerType)
}

func nullError(path string, t reflect.Type) *sserr.Error {
	detail := fmt.Sprintf("invalid type: null, expected %s", t)
	if path == "" {
		return sserr.Newf(sserr.CodeValidationClaimShape, "auth: cannot decode claims: %s", detail)
	}
	return sserr.Newf(sserr.CodeValidationClaimShape, "auth: cannot decode claims: field %q: %s", path, detail).
		WithDetail("field", path)
}

func joinFieldPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
