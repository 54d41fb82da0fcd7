package service

import (
	"fmt"
	"time"

	"uniparking/pkg/model"
)

const timeLayout = "Mon 02 Jan 15:04 MST"

// Render builds the inbox title and body for an event. ok is false for an
// event type the notifier does not know.
func Render(e model.Event) (title, body string, ok bool) {
	space := ""
	if e.SpaceNumber > 0 {
		space = fmt.Sprintf(" at space %d", e.SpaceNumber)
	}
	window := fmt.Sprintf("%s to %s", formatTime(e.StartTime), formatTime(e.EndTime))

	switch e.Type {
	case model.EventReservationCreated:
		return "Reservation received",
			fmt.Sprintf("Reservation %s%s for %s is waiting for payment of $%s.", e.ReferenceNumber, space, window, e.Amount), true
	case model.EventReservationPaid:
		return "Payment received",
			fmt.Sprintf("We received $%s for reservation %s. It is now waiting for confirmation.", e.Amount, e.ReferenceNumber), true
	case model.EventReservationConfirmed:
		return "Reservation confirmed",
			fmt.Sprintf("Reservation %s%s is confirmed for %s.", e.ReferenceNumber, space, window), true
	case model.EventReservationRejected:
		return "Reservation rejected",
			fmt.Sprintf("Reservation %s was rejected: %s", e.ReferenceNumber, reason(e.Reason)), true
	case model.EventReservationCancelled:
		return "Reservation cancelled",
			fmt.Sprintf("Reservation %s was cancelled: %s", e.ReferenceNumber, reason(e.Reason)), true
	case model.EventSessionStarted:
		return "Parking started",
			fmt.Sprintf("Session %s%s started, paid until %s.", e.ReferenceNumber, space, formatTime(e.EndTime)), true
	case model.EventSessionExtended:
		return "Parking extended",
			fmt.Sprintf("Session %s now runs until %s. Total paid $%s.", e.ReferenceNumber, formatTime(e.EndTime), e.Amount), true
	case model.EventSessionEnded:
		return "Parking ended",
			fmt.Sprintf("Session %s has ended. Total paid $%s.", e.ReferenceNumber, e.Amount), true
	default:
		return "", "", false
	}
}

func reason(r string) string {
	if r == "" {
		return "no reason given."
	}
	return r
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}
