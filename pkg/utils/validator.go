package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/certgate/pkg/errors"
)

var (
	serverNamePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)
	clientNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Validator holds the singleton instance of the validator.
var defaultValidator *validator.Validate

func init() {
	defaultValidator = validator.New()
	RegisterCustomValidations(defaultValidator)
}

// RegisterCustomValidations installs certgate's tags and json field naming on v.
// The HTTP layer calls it on gin's binding engine so DTO binding and ValidateStruct agree.
func RegisterCustomValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return toSnakeCase(fld.Name)
		}
		return name
	})
	_ = v.RegisterValidation("servername", func(fl validator.FieldLevel) bool {
		return serverNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("clientname", func(fl validator.FieldLevel) bool {
		return clientNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return IsSingleLine(fl.Field().String())
	})
}

// IsSingleLine reports whether s is free of control characters. The vars file is
// line oriented, so a newline inside a value would not survive a write.
func IsSingleLine(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// ValidateStruct validates a struct using the default validator.
// It returns a validation AppError listing every failing field.
func ValidateStruct(s interface{}) errors.AppError {
	if err := defaultValidator.Struct(s); err != nil {
		return ValidationError(err)
	}
	return nil
}

// ValidationError converts a validator error into a validation AppError.
func ValidationError(err error) errors.AppError {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error())
	}
	details := make(map[string]string, len(validationErrors))
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msg := formatValidationError(fe)
		details[fe.Field()] = msg
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	appErr := errors.Validation(strings.Join(msgs, "; "))
	for k, v := range details {
		appErr.WithMetadata(k, v)
	}
	return appErr
}

// ValidateServerName reports whether name is an acceptable server certificate name.
func ValidateServerName(name string) bool {
	return serverNamePattern.MatchString(name)
}

// ValidateClientName reports whether name is an acceptable client certificate name.
func ValidateClientName(name string) bool {
	return clientNamePattern.MatchString(name)
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "ip":
		return "must be a valid IP address"
	case "fqdn":
		return "must be a valid domain name"
	case "alpha":
		return "must contain letters only"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "servername":
		return "must contain only lowercase letters, numbers, dots, hyphens and underscores"
	case "clientname":
		return "must contain only letters, numbers, dots, hyphens and underscores"
	case "singleline":
		return "must not contain line breaks or control characters"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// toSnakeCase converts a string from CamelCase to snake_case.
func toSnakeCase(str string) string {
	var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
