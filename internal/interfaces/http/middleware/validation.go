package middleware

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/opencrm/backend/internal/infrastructure/scheduler"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
)

var (
	// digits with optional leading +, spaces, dots, dashes and parentheses
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ().\-]{6,30}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// SetupValidator configures gin's validator: field names in errors follow
// the json or form tag and the CRM tags are registered.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterValidations(v)
}

// RegisterValidations adds the crm_phone, crm_currency and crm_cron tags
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	validations := map[string]validator.Func{
		"crm_phone":    validatePhone,
		"crm_currency": validateCurrency,
		"crm_cron":     validateCron,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func validatePhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 6 && digits <= 15
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(fl.Field().String())
}

func validateCron(fl validator.FieldLevel) bool {
	return scheduler.ValidateSpec(fl.Field().String()) == nil
}

// ValidationDetails turns binding errors into per-field details. Errors that
// are not field validation failures, such as malformed JSON, yield one
// detail with an empty field.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.ValidationDetail{{Message: "Malformed request body or query"}}
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "url":
		return "Invalid URL format"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "min":
		if isString {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must be at least " + fe.Param()
	case "max":
		if isString {
			return "Must be at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "lte":
		return "Must be less than or equal to " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "crm_phone":
		return "Invalid phone number"
	case "crm_currency":
		return "Must be an ISO 4217 currency code"
	case "crm_cron":
		return "Invalid cron expression"
	default:
		return "Invalid value"
	}
}
