package progress

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks validate tags on v and reports failures as a
// validation error naming the offending fields.
func ValidateStruct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+":"+fe.Tag())
		}
		return Validation(op, "invalid fields %s", strings.Join(fields, ","))
	}
	return Wrap(CodeValidation, op, err)
}
