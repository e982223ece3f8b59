package validator

import (
	"errors"
	"fmt"
	"strings"

	"hospital-inventory/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

var validate = newValidate()

// newValidate reads the same `binding` tags gin uses so DTOs carry one rule set.
func newValidate() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(jsonName)
	return v
}

// Struct validates a DTO and returns a VALIDATION_ERROR carrying the failed fields.
func Struct(data interface{}) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	return Translate(err)
}

// Translate turns validator errors (from gin binding or Struct) into an app error.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(apperror.CodeValidation, err, "invalid request payload")
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
		names = append(names, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return apperror.New(apperror.CodeValidation, "invalid fields: "+strings.Join(names, ", ")).WithDetails(fields)
}
