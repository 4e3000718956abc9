package serverutils

import (
	"errors"
	"fmt"

	"ai-interview-be/internal/dto"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks struct tags and returns a *dto.ValidationError on failure.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &dto.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, dto.FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	}
	return fmt.Sprintf("failed on %s", fe.Tag())
}
