package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"

	"github.com/go-playground/validator/v10"
)

const (
	TagLocationCode = "location_code"
	TagCardExpiry   = "card_expiry"
	TagCardCVV      = "card_cvv"
)

var (
	locationCodeRegex = regexp.MustCompile(`^[A-Z0-9]{4}$`)
	cardExpiryRegex   = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cardCVVRegex      = regexp.MustCompile(`^[0-9]{3,4}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details flattens the errors into the map carried by AppError.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

// Validator wraps go-playground/validator with the parking tags registered.
type Validator struct {
	validate *validator.Validate
}

func New(log *logger.Logger) *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation(TagLocationCode, validateLocationCode); err != nil {
		log.Fatal("Failed to register 'location_code' validator", "error", err)
	}
	if err := v.RegisterValidation(TagCardExpiry, validateCardExpiry); err != nil {
		log.Fatal("Failed to register 'card_expiry' validator", "error", err)
	}
	if err := v.RegisterValidation(TagCardCVV, validateCardCVV); err != nil {
		log.Fatal("Failed to register 'card_cvv' validator", "error", err)
	}

	return &Validator{validate: v}
}

// jsonFieldName makes error fields match the request body keys.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateLocationCode(fl validator.FieldLevel) bool {
	return locationCodeRegex.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
}

func validateCardExpiry(fl validator.FieldLevel) bool {
	return cardExpiryRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateCardCVV(fl validator.FieldLevel) bool {
	return cardCVVRegex.MatchString(fl.Field().String())
}

func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return Translate(validationErrs)
		}
		return err
	}
	return nil
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
		case "ltefield":
			message = fmt.Sprintf("%s cannot exceed %s", err.Field(), err.Param())
		case "credit_card":
			message = "card_number is not a valid card number"
		case TagCardCVV:
			message = "cvv must be 3 or 4 digits"
		case TagCardExpiry:
			message = "expiry must be in MM/YY format"
		case TagLocationCode:
			message = "code must be exactly 4 letters or digits"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

// ToAppError converts a validator failure into the VALIDATION_ERROR response.
func ToAppError(message string, err error) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
