package config

import (
	"reflect"

	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

// Validator is implemented by configuration structs that need checks beyond
// `required` tags. Load calls Validate after tag validation succeeds.
// *sserr.Error results are returned unchanged; other errors are wrapped
// with [sserr.CodeValidation].
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isSSErr := sserr.AsError(err); isSSErr {
				return err
			}
			return sserr.Wrap(err, sserr.CodeValidation, "config: custom validation failed")
		}
	}
	return nil
}

// validateRequired checks `required:"true"` fields, tracking a dotted path
// such as "Server.Addr" for the error message.
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && !isLeaf(sf.Type) {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") != "true" {
			continue
		}
		if field.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}
