package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is an occupancy row: a vehicle parked now on a space.
type Session struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	VehicleID       int64           `json:"vehicle_id"`
	LocationID      int64           `json:"location_id"`
	SpaceID         int64           `json:"space_id"`
	SpaceNumber     int             `json:"space_number"`
	TimeIn          time.Time       `json:"time_in"`
	TimeOut         *time.Time      `json:"time_out,omitempty"`
	DurationHours   int             `json:"duration_hours"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	ReferenceNumber string          `json:"reference_number"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	LocationName    string          `json:"location_name,omitempty"`
}

func (s *Session) Open() bool {
	return s.TimeOut == nil
}

// EffectiveEnd is always derived from time_in and duration. Extensions never
// touch time_in or time_out.
func (s *Session) EffectiveEnd() time.Time {
	return s.TimeIn.Add(time.Duration(s.DurationHours) * time.Hour)
}

func (s *Session) Window() Interval {
	return Interval{Start: s.TimeIn, End: s.EffectiveEnd()}
}

// ActiveSession is the dashboard view polled by clients.
type ActiveSession struct {
	Session
	EffectiveEnd     time.Time `json:"effective_end"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Overdue          bool      `json:"overdue"`
}

func NewActiveSession(s *Session, now time.Time) *ActiveSession {
	end := s.EffectiveEnd()
	remaining := end.Sub(now)
	view := &ActiveSession{Session: *s, EffectiveEnd: end}
	if remaining > 0 {
		view.RemainingSeconds = int64(remaining / time.Second)
	} else {
		view.Overdue = true
	}
	return view
}

type SessionStart struct {
	VehicleID     int64           `json:"vehicle_id" validate:"required,gt=0"`
	LocationID    int64           `json:"location_id" validate:"required,gt=0"`
	DurationHours int             `json:"duration_hours" validate:"required,min=1"`
	NeedsDisabled bool            `json:"needs_disabled"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Card          Card            `json:"card" validate:"-"`
}

type SessionExtend struct {
	AdditionalHours int  `json:"additional_hours" validate:"required,min=1"`
	Card            Card `json:"card" validate:"-"`
}
