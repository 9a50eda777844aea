// Package validation checks configuration and topology definitions.
//
// Struct tags are checked with go-playground/validator; field names in
// messages follow the yaml tag so errors point at the file being loaded:
//
//	type Webhook struct {
//	    Port int `yaml:"port" validate:"gte=1,lte=65535"`
//	}
//	err := validation.Validate(cfg)
//
// Rules that span fields are collected with a Validator:
//
//	v := validation.New()
//	v.Check(seen[name] == 0, "processors.name", "must be unique")
//	err := v.Err()
//
// Both return an *errors.AppError with code INVALID_INPUT and the failing
// fields under the "fields" detail.
package validation
