package validator

import (
	"fmt"
	"time"

	"uniparking/pkg/model"
	"uniparking/pkg/validation"
)

type ReservationValidator struct {
	validator *validation.Validator
	maxHours  int
}

func NewReservationValidator(v *validation.Validator, maxHours int) *ReservationValidator {
	return &ReservationValidator{
		validator: v,
		maxHours:  maxHours,
	}
}

// ValidateRequest checks the booking window. A start in the past is rejected
// relative to now.
func (v *ReservationValidator) ValidateRequest(req *model.ReservationRequest, now time.Time) error {
	if err := v.validator.Struct(req); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	if req.DurationHours > v.maxHours {
		errs = append(errs, validation.ValidationError{
			Field:   "duration_hours",
			Message: fmt.Sprintf("duration_hours must be at most %d", v.maxHours),
		})
	}
	if req.StartTime.Before(now) {
		errs = append(errs, validation.ValidationError{
			Field:   "start_time",
			Message: "start_time cannot be in the past",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateDecision only bounds the reason length. A reject may carry any
// reason, including none.
func (v *ReservationValidator) ValidateDecision(d *model.AdminDecision) error {
	return v.validator.Struct(d)
}

func (v *ReservationValidator) ValidateCancel(req *model.CancelRequest) error {
	return v.validator.Struct(req)
}

// ValidateStatusFilter accepts an empty filter or one of the known statuses.
func (v *ReservationValidator) ValidateStatusFilter(status string) error {
	switch model.ReservationStatus(status) {
	case "", model.ReservationPending, model.ReservationConfirmed, model.ReservationRejected, model.ReservationCancelled:
		return nil
	}
	return validation.ValidationErrors{{
		Field:   "status",
		Message: "status must be one of: pending confirmed rejected cancelled",
	}}
}
