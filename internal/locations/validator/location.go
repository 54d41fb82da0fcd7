package validator

import (
	"fmt"

	"uniparking/pkg/model"
	"uniparking/pkg/validation"

	"github.com/shopspring/decimal"
)

type LocationValidator struct {
	validator *validation.Validator
	minRate   decimal.Decimal
	maxSpaces int
}

func NewLocationValidator(v *validation.Validator, minRate decimal.Decimal, maxSpaces int) *LocationValidator {
	return &LocationValidator{
		validator: v,
		minRate:   minRate,
		maxSpaces: maxSpaces,
	}
}

func (v *LocationValidator) ValidateCreate(req *model.LocationCreate) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	if req.HourlyRate.LessThan(v.minRate) {
		errs = append(errs, validation.ValidationError{
			Field:   "hourly_rate",
			Message: fmt.Sprintf("hourly_rate must be at least %s", v.minRate.StringFixed(2)),
		})
	}
	if req.TotalSpaces > v.maxSpaces {
		errs = append(errs, validation.ValidationError{
			Field:   "total_spaces",
			Message: fmt.Sprintf("total_spaces must be at most %d", v.maxSpaces),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateResize needs the current total to bound the result.
func (v *LocationValidator) ValidateResize(req *model.SpaceResize, current int) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	if req.Add == 0 && req.Remove == 0 {
		errs = append(errs, validation.ValidationError{
			Field:   "add",
			Message: "add or remove must be greater than 0",
		})
	}
	result := current + req.Add - req.Remove
	if result < 1 {
		errs = append(errs, validation.ValidationError{
			Field:   "remove",
			Message: "a location must keep at least one space",
		})
	}
	if result > v.maxSpaces {
		errs = append(errs, validation.ValidationError{
			Field:   "add",
			Message: fmt.Sprintf("a location can have at most %d spaces", v.maxSpaces),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *LocationValidator) ValidateStatus(req *model.LocationStatusUpdate) error {
	return v.validator.Struct(req)
}

func (v *LocationValidator) ValidateSpaceUpdate(req *model.SpaceUpdate) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}
	if req.IsDisabled == nil && req.SpecialType == "" {
		return validation.ValidationErrors{{
			Field:   "is_disabled",
			Message: "is_disabled or special_type is required",
		}}
	}
	return nil
}
