// Package validation implements the field rules shared by the registration
// form and the profile editor. Every field is checked on each call, so the
// caller always gets the complete set of messages for a candidate.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/signup/internal/models"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// Validator wraps a configured go-playground validator instance.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

func validateDigits10(fieldLevel validator.FieldLevel) bool {
	return phonePattern.MatchString(fieldLevel.Field().String())
}

func validateAccepted(fieldLevel validator.FieldLevel) bool {
	field := fieldLevel.Field()
	return field.Kind() == reflect.Bool && field.Bool()
}

func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// New builds a Validator with the custom "digits10" and "accepted" rules registered.
func New() (*Validator, error) {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonName)

	err := validate.RegisterValidation("digits10", validateDigits10)
	if err != nil {
		return nil, err
	}

	err = validate.RegisterValidation("accepted", validateAccepted)
	if err != nil {
		return nil, err
	}

	return &Validator{validate: validate}, nil
}

// Validate checks a registration candidate. A nil result means the candidate is valid.
func (v *Validator) Validate(candidate models.Registration) models.FieldErrors {
	return v.check(candidate)
}

// ValidateDraft checks the editable subset of a profile.
func (v *Validator) ValidateDraft(draft models.ProfileDraft) models.FieldErrors {
	return v.check(draft)
}

// ValidateFields checks the candidate but reports only the named fields.
// It backs blur validation, where untouched fields must stay quiet.
func (v *Validator) ValidateFields(candidate models.Registration, fields ...string) models.FieldErrors {
	all := v.check(candidate)
	if all == nil {
		return nil
	}

	result := models.FieldErrors{}
	for _, name := range funk.FilterString(funk.Keys(all).([]string), func(name string) bool {
		return funk.ContainsString(fields, name)
	}) {
		result[name] = all[name]
	}
	if len(result) == 0 {
		return nil
	}

	return result
}

func (v *Validator) check(value interface{}) models.FieldErrors {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return models.FieldErrors{"": err.Error()}
	}

	structType := reflect.TypeOf(value)
	result := make(models.FieldErrors, len(validationErrors))
	for _, fieldError := range validationErrors {
		label := fieldError.StructField()
		if structField, ok := structType.FieldByName(fieldError.StructField()); ok {
			if tagged := structField.Tag.Get("label"); tagged != "" {
				label = tagged
			}
		}
		result[fieldError.Field()] = message(label, fieldError)
	}

	return result
}

func message(label string, fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fieldError.Param())
	case "email":
		return "Invalid email address"
	case "digits10":
		return "Invalid phone number"
	case "accepted":
		return "You must accept the terms and conditions"
	}

	return fmt.Sprintf("%s is invalid", label)
}
