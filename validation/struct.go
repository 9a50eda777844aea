package validation

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/flowkit/errors"
)

var (
	validate *validator.Validate
	once     sync.Once

	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		// the rules below cannot fail to register: names are fixed and
		// functions non-nil
		_ = validate.RegisterValidation("name", func(fl validator.FieldLevel) bool {
			return IsName(fl.Field().String())
		})
		_ = validate.RegisterValidation("ref", func(fl validator.FieldLevel) bool {
			_, _, ok := ParseRef(fl.Field().String())
			return ok
		})
	})
	return validate
}

// fieldName prefers the yaml tag, then mapstructure, then json.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"yaml", "mapstructure", "json"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return toSnakeCase(fld.Name)
}

// IsName reports whether s is usable as a processor or component name.
func IsName(s string) bool {
	return namePattern.MatchString(s)
}

// ParseRef splits an input reference of the form "processor" or
// "processor:channel". channel is empty when the reference names no channel.
func ParseRef(ref string) (processor, channel string, ok bool) {
	processor, channel, hasChannel := strings.Cut(ref, ":")
	if !IsName(processor) {
		return "", "", false
	}
	if hasChannel && !IsName(channel) {
		return "", "", false
	}
	return processor, channel, true
}

// Validate checks s against its `validate` struct tags.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return errors.Validation("validation failed").WithCause(err)
	}

	v := New()
	for _, e := range validationErrors {
		v.AddError(fieldPath(e), formatValidationError(e))
	}
	return v.Err()
}

// fieldPath drops the root struct name from the namespace:
// "Definition.processors[0].name" becomes "processors[0].name".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice || e.Kind() == reflect.Map {
			return "must have at least " + e.Param() + " entries"
		}
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "hostname_port":
		return "must be a host:port address"
	case "startswith":
		return "must start with " + e.Param()
	case "name":
		return "must be a name of letters, digits, '.', '_' or '-'"
	case "ref":
		return `must be "processor" or "processor:channel"`
	default:
		return "is invalid"
	}
}

// toSnakeCase converts a field name to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32) // lowercase
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
