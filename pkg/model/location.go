package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LocationStatus string

const (
	LocationOpen        LocationStatus = "open"
	LocationClosed      LocationStatus = "closed"
	LocationMaintenance LocationStatus = "maintenance"
	LocationEventOnly   LocationStatus = "event_only"
)

func (s LocationStatus) Valid() bool {
	switch s {
	case LocationOpen, LocationClosed, LocationMaintenance, LocationEventOnly:
		return true
	}
	return false
}

// AcceptsBookings is false for closed and maintenance. Event-only locations
// still allocate.
func (s LocationStatus) AcceptsBookings() bool {
	return s == LocationOpen || s == LocationEventOnly
}

type SpaceType string

const (
	SpaceStandard SpaceType = "standard"
	SpaceDisabled SpaceType = "disabled"
)

func SpaceTypeFor(needsDisabled bool) SpaceType {
	if needsDisabled {
		return SpaceDisabled
	}
	return SpaceStandard
}

type Location struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	TotalSpaces int             `json:"total_spaces"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Status      LocationStatus  `json:"status"`
	StatusNote  string          `json:"status_note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (l *Location) Disabled() bool {
	return !l.Status.AcceptsBookings()
}

// LocationSummary is the public listing row.
type LocationSummary struct {
	Location
	AvailableSpaces int    `json:"available_spaces"`
	IsDisabled      bool   `json:"disabled"`
	DisabledReason  string `json:"disabled_reason,omitempty"`
}

type Space struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	Number      int       `json:"space_number"`
	SpecialType SpaceType `json:"special_type"`
	IsDisabled  bool      `json:"is_disabled"`
}

type LocationCreate struct {
	Name             string          `json:"name" validate:"required,min=2,max=100"`
	Code             string          `json:"code" validate:"required,location_code"`
	TotalSpaces      int             `json:"total_spaces" validate:"required,min=1"`
	AccessibleSpaces int             `json:"accessible_spaces" validate:"min=0,ltefield=TotalSpaces"`
	HourlyRate       decimal.Decimal `json:"hourly_rate" validate:"required"`
}

type SpaceResize struct {
	Add         int       `json:"add" validate:"min=0"`
	Remove      int       `json:"remove" validate:"min=0"`
	SpecialType SpaceType `json:"special_type" validate:"omitempty,oneof=standard disabled"`
}

type LocationStatusUpdate struct {
	Status LocationStatus `json:"status" validate:"required,oneof=open closed maintenance event_only"`
	Note   string         `json:"note" validate:"max=500"`
}

type SpaceUpdate struct {
	IsDisabled  *bool     `json:"is_disabled,omitempty"`
	SpecialType SpaceType `json:"special_type,omitempty" validate:"omitempty,oneof=standard disabled"`
}
