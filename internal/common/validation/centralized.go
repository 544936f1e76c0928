package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/go-playground/validator/v10"
)

// CentralizedValidator validates action arguments and configuration structs using struct tags
type CentralizedValidator struct {
	validator *validator.Validate
	messages  map[string]func(validator.FieldError) string
}

// FieldError is a single validation failure
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// NewCentralizedValidator creates a validator that reports fields by their JSON names
func NewCentralizedValidator() *CentralizedValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	cv := &CentralizedValidator{
		validator: v,
		messages:  make(map[string]func(validator.FieldError) string),
	}
	cv.registerDefaults()
	return cv
}

// RegisterEnum adds a tag accepting only the given values. message formats the failure for a field.
func (cv *CentralizedValidator) RegisterEnum(tag string, values []string, message func(field, value string) string) error {
	allowed := make(map[string]bool, len(values))
	for _, value := range values {
		allowed[value] = true
	}

	err := cv.validator.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return allowed[fl.Field().String()]
	})
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}

	cv.messages[tag] = func(fe validator.FieldError) string {
		return message(fe.Field(), fmt.Sprintf("%v", fe.Value()))
	}
	return nil
}

// ValidateStruct validates s, returning an InvalidArgument error listing every failed field
func (cv *CentralizedValidator) ValidateStruct(s interface{}) error {
	fieldErrors := cv.Check(s)
	if len(fieldErrors) == 0 {
		return nil
	}
	if len(fieldErrors) == 1 {
		return errors.InvalidArgumentError(fieldErrors[0].Message)
	}

	messages := make([]string, len(fieldErrors))
	for i, fe := range fieldErrors {
		messages[i] = fe.Message
	}
	return errors.InvalidArgumentError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

// Check validates s and returns the structured failures
func (cv *CentralizedValidator) Check(s interface{}) []FieldError {
	err := cv.validator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: cv.formatFieldError(fe),
		})
	}
	return out
}

func (cv *CentralizedValidator) formatFieldError(err validator.FieldError) string {
	if format, ok := cv.messages[err.Tag()]; ok {
		return format(err)
	}

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", err.Field())
	case "notblank":
		return fmt.Sprintf("field '%s' must not be blank", err.Field())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", err.Field())
	case "min":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("field '%s' must contain at least %s item(s)", err.Field(), err.Param())
		}
		return fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param())
	case "max":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("field '%s' must contain at most %s item(s)", err.Field(), err.Param())
		}
		return fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", err.Field(), err.Param())
	case "hostname_port":
		return fmt.Sprintf("field '%s' must be a host:port pair", err.Field())
	case "duration":
		return fmt.Sprintf("field '%s' must be a positive duration", err.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag())
	}
}

func (cv *CentralizedValidator) registerDefaults() {
	// time.Duration fields are int64 underneath
	_ = cv.validator.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(time.Duration)
		return ok && d > 0
	})
}
