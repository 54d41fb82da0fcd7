package service

import (
	"context"
	"testing"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    model.ReservationStatus
		event   string
		want    model.ReservationStatus
		wantErr bool
	}{
		{model.ReservationPending, EventPay, model.ReservationPending, false},
		{model.ReservationConfirmed, EventPay, model.ReservationConfirmed, false},
		{model.ReservationPending, EventConfirm, model.ReservationConfirmed, false},
		{model.ReservationPending, EventReject, model.ReservationRejected, false},
		{model.ReservationPending, EventCancel, model.ReservationCancelled, false},
		{model.ReservationConfirmed, EventCancel, model.ReservationCancelled, false},

		{model.ReservationConfirmed, EventConfirm, "", true},
		{model.ReservationConfirmed, EventReject, "", true},
		{model.ReservationRejected, EventPay, "", true},
		{model.ReservationRejected, EventCancel, "", true},
		{model.ReservationCancelled, EventPay, "", true},
		{model.ReservationCancelled, EventConfirm, "", true},
		{model.ReservationCancelled, EventCancel, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.event, func(t *testing.T) {
			got, err := transition(context.Background(), tt.from, tt.event)
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
					t.Fatalf("expected INVALID_TRANSITION, got %v", err)
				}
				if got != tt.from {
					t.Errorf("status changed to %s on a rejected transition", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("transition(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
			}
		})
	}
}
