package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationPaid      = "reservation.paid"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationRejected  = "reservation.rejected"
	EventReservationCancelled = "reservation.cancelled"
	EventSessionStarted       = "session.started"
	EventSessionExtended      = "session.extended"
	EventSessionEnded         = "session.ended"
)

// Event is a status change handed off to the notification worker.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	UserID          int64     `json:"user_id"`
	ReferenceNumber string    `json:"reference_number"`
	LocationID      int64     `json:"location_id,omitempty"`
	SpaceNumber     int       `json:"space_number,omitempty"`
	Status          string    `json:"status,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	StartTime       time.Time `json:"start_time,omitempty"`
	EndTime         time.Time `json:"end_time,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Notification struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EventID         string             `json:"event_id" bson:"event_id"`
	UserID          int64              `json:"user_id" bson:"user_id"`
	Type            string             `json:"type" bson:"type"`
	ReferenceNumber string             `json:"reference_number" bson:"reference_number"`
	Title           string             `json:"title" bson:"title"`
	Body            string             `json:"body" bson:"body"`
	Read            bool               `json:"read" bson:"read"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	ReadAt          *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
}
