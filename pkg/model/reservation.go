package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationRejected  ReservationStatus = "rejected"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Terminal() bool {
	return s == ReservationRejected || s == ReservationCancelled
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Reservation struct {
	ID                 int64             `json:"id"`
	UserID             int64             `json:"user_id"`
	VehicleID          int64             `json:"vehicle_id"`
	LocationID         int64             `json:"location_id"`
	SpaceID            *int64            `json:"space_id,omitempty"`
	SpaceNumber        *int              `json:"space_number,omitempty"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	DurationHours      int               `json:"duration_hours"`
	AmountPaid         decimal.Decimal   `json:"amount_paid"`
	ReferenceNumber    string            `json:"reference_number"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	Status             ReservationStatus `json:"status"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	ProcessedBy        *int64            `json:"processed_by,omitempty"`
	NeedsDisabled      bool              `json:"needs_disabled"`
	HoldExpiresAt      *time.Time        `json:"hold_expires_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (r *Reservation) Window() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

func (r *Reservation) IsPaid() bool {
	return r.PaymentStatus == PaymentPaid
}

// Blocks reports whether the reservation keeps its space from being handed
// out again at now. Paid reservations always block; unpaid ones only while
// their hold is live.
func (r *Reservation) Blocks(now time.Time) bool {
	if r.Status.Terminal() {
		return false
	}
	if r.IsPaid() {
		return true
	}
	return r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
}

func (r *Reservation) AssignSpace(spaceID int64, number int) {
	r.SpaceID = &spaceID
	r.SpaceNumber = &number
}

type ReservationRequest struct {
	VehicleID     int64     `json:"vehicle_id" validate:"required,gt=0"`
	LocationID    int64     `json:"location_id" validate:"required,gt=0"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1"`
	NeedsDisabled bool      `json:"needs_disabled"`
}

func (r *ReservationRequest) Window() Interval {
	return NewInterval(r.StartTime, r.DurationHours)
}

// ReservationQuote answers "is there room and what would it cost" without
// persisting anything.
type ReservationQuote struct {
	LocationID    int64           `json:"location_id"`
	SpaceNumber   int             `json:"space_number"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	DurationHours int             `json:"duration_hours"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

const (
	DecisionConfirm = "confirm"
	DecisionReject  = "reject"
)

type AdminDecision struct {
	Decision string `json:"decision" validate:"required,oneof=confirm reject"`
	Reason   string `json:"reason" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type PaymentRequest struct {
	Card Card `json:"card" validate:"-"`
}
