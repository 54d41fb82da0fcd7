package validator

import (
	"fmt"

	"uniparking/pkg/model"
	"uniparking/pkg/validation"
)

type SessionValidator struct {
	validator         *validation.Validator
	maxSessionHours   int
	maxExtensionHours int
}

func NewSessionValidator(v *validation.Validator, maxSessionHours, maxExtensionHours int) *SessionValidator {
	return &SessionValidator{
		validator:         v,
		maxSessionHours:   maxSessionHours,
		maxExtensionHours: maxExtensionHours,
	}
}

func (v *SessionValidator) ValidateStart(req *model.SessionStart) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	if req.DurationHours > v.maxSessionHours {
		errs = append(errs, validation.ValidationError{
			Field:   "duration_hours",
			Message: fmt.Sprintf("duration_hours must be at most %d", v.maxSessionHours),
		})
	}
	if req.AmountPaid.IsNegative() {
		errs = append(errs, validation.ValidationError{
			Field:   "amount_paid",
			Message: "amount_paid cannot be negative",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *SessionValidator) ValidateExtend(req *model.SessionExtend) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}
	if req.AdditionalHours > v.maxExtensionHours {
		return validation.ValidationErrors{{
			Field:   "additional_hours",
			Message: fmt.Sprintf("additional_hours must be at most %d", v.maxExtensionHours),
		}}
	}
	return nil
}
