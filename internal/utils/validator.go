package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/edupulse/assessment-delivery/internal/errors"
	"github.com/edupulse/assessment-delivery/internal/models"
)

// Validator wraps a configured validator instance with the custom rules
// registered.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a validator with all custom rules registered.
func NewValidator() *Validator {
	v := validator.New()
	RegisterCustomValidators(v)
	return &Validator{validate: v}
}

// Validate checks a struct and converts failures to the shared error type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

// Engine exposes the underlying validate instance for direct access.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Custom validation functions

func ValidateQuestionType(fl validator.FieldLevel) bool {
	value := models.QuestionType(fl.Field().String())
	for _, validType := range models.AllQuestionTypes {
		if validType == value {
			return true
		}
	}
	return false
}

func ValidateAnswerableType(fl validator.FieldLevel) bool {
	value := models.QuestionType(fl.Field().String())
	if value == models.Unsupported {
		return false
	}
	return ValidateQuestionType(fl)
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", ValidateQuestionType)
	validate.RegisterValidation("answerable_type", ValidateAnswerableType)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
