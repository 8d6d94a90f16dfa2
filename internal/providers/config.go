// Package providers holds helpers shared by the action provider
// constructors.
package providers

import (
	stdErrors "errors"
	"os"
	"strings"

	xerrors "ActionKit-Chain/internal/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its validate tags. Failures are
// CONFIGURATION errors naming the provider and each offending field.
func Validate(provider string, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stdErrors.As(err, &verrs) {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, provider+" configuration is invalid")
	}
	fields := make([]xerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, xerrors.FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return xerrors.New(xerrors.CodeConfiguration, provider+" configuration is invalid", xerrors.WithFields(fields...))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "url":
		return "must be a URL"
	case "gt", "gte", "lt", "lte", "min", "max":
		return "must be " + fe.Tag() + " " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// Env returns value, or the trimmed environment variable key when value is
// empty.
func Env(value, key string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(key))
}
