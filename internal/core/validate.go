package core

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func messageValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks the invariants every transport relies on: a valid sender,
// at least one valid recipient, a subject and at least one body rendition.
// The first violation is reported as a *ValidationError.
func (m *Message) Validate() error {
	if m == nil {
		return NewValidationError("message", "message is required")
	}

	err := messageValidator().Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("message", err.Error())
	}

	return translate(verrs[0])
}

func translate(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		if fe.Field() == "to" {
			msg = "at least one recipient required"
		} else {
			msg = "is required"
		}
	case "min":
		msg = "at least one recipient required"
	case "email":
		msg = "invalid email address"
	case "notblank":
		msg = "must not be blank"
	case "required_without":
		msg = "either text or HTML body is required"
	default:
		msg = "failed " + fe.Tag() + " validation"
	}

	if s, ok := fe.Value().(string); ok && s != "" {
		return NewValidationErrorWithValue(field, msg, s)
	}
	return NewValidationError(field, msg)
}
