package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnalyzeForm is the multipart body of POST /analyze.
type AnalyzeForm struct {
	ContractType string                `form:"contract_type" validate:"required,contract_type"`
	File         *multipart.FileHeader `form:"file" validate:"required"`
}

var formMessages = map[string]string{
	"required":      "The field '%s' is required.",
	"contract_type": "Unknown contract type.",
}

var formFieldNames = map[string]string{
	"ContractType": "contract_type",
	"File":         "file",
}

// newFormValidator returns a validator with the contract_type rule bound to
// the allow-list check.
func newFormValidator(allowed func(string) bool) *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("contract_type", func(fl validator.FieldLevel) bool {
		return allowed(fl.Field().String())
	})
	return v
}

// formError renders the first validation failure as a short message.
func formError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid form data."
	}
	e := verrs[0]
	name := formFieldNames[e.StructField()]
	if name == "" {
		name = e.StructField()
	}
	if msg, ok := formMessages[e.Tag()]; ok {
		if strings.Contains(msg, "%s") {
			return fmt.Sprintf(msg, name)
		}
		return msg
	}
	return fmt.Sprintf("Field '%s' is invalid: %s", name, e.Tag())
}
