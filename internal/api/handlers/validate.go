package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationMessage validates req and returns the message for the first
// failing field, looked up by struct field name. Fields without an entry
// get a generic message.
func validationMessage(req any, messages map[string]string) (string, bool) {
	err := validate.Struct(req)
	if err == nil {
		return "", true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request", false
	}

	fe := verrs[0]
	if msg, ok := messages[fe.StructField()]; ok {
		return msg, false
	}
	return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()), false
}
