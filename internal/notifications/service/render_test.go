package service

import (
	"strings"
	"testing"
	"time"

	"uniparking/pkg/model"
)

func TestRender(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	base := model.Event{
		ReferenceNumber: "RES-20250310-ABC123",
		SpaceNumber:     12,
		Amount:          "22.50",
		StartTime:       start,
		EndTime:         start.Add(10 * time.Hour),
	}

	tests := []struct {
		eventType string
		reason    string
		wantTitle string
		wantBody  []string
	}{
		{model.EventReservationCreated, "", "Reservation received", []string{"$22.50", "space 12"}},
		{model.EventReservationPaid, "", "Payment received", []string{"$22.50"}},
		{model.EventReservationConfirmed, "", "Reservation confirmed", []string{"space 12", "Mon 10 Mar 09:00 UTC"}},
		{model.EventReservationRejected, "lot closed for event", "Reservation rejected", []string{"lot closed for event"}},
		{model.EventReservationCancelled, "", "Reservation cancelled", []string{"no reason given."}},
		{model.EventSessionStarted, "", "Parking started", []string{"Mon 10 Mar 19:00 UTC"}},
		{model.EventSessionExtended, "", "Parking extended", []string{"$22.50"}},
		{model.EventSessionEnded, "", "Parking ended", []string{"has ended"}},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			e := base
			e.Type = tt.eventType
			e.Reason = tt.reason

			title, body, ok := Render(e)
			if !ok {
				t.Fatal("Render() ok = false")
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if !strings.Contains(body, e.ReferenceNumber) {
				t.Errorf("body %q lacks reference number", body)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body %q lacks %q", body, want)
				}
			}
		})
	}
}

func TestRender_UnknownType(t *testing.T) {
	if _, _, ok := Render(model.Event{Type: "space.painted"}); ok {
		t.Error("Render() ok = true for unknown type")
	}
}
