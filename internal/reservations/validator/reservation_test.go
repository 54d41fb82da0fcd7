package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"uniparking/pkg/logger"
	"uniparking/pkg/model"
	"uniparking/pkg/validation"
)

func newValidator() *ReservationValidator {
	return NewReservationValidator(validation.New(logger.Discard()), 72)
}

func TestValidateRequest(t *testing.T) {
	v := newValidator()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		req       model.ReservationRequest
		wantField string
	}{
		{
			name: "valid",
			req:  model.ReservationRequest{VehicleID: 1, LocationID: 2, StartTime: now.Add(time.Hour), DurationHours: 3},
		},
		{
			name: "starts exactly now",
			req:  model.ReservationRequest{VehicleID: 1, LocationID: 2, StartTime: now, DurationHours: 3},
		},
		{
			name:      "start in the past",
			req:       model.ReservationRequest{VehicleID: 1, LocationID: 2, StartTime: now.Add(-time.Minute), DurationHours: 3},
			wantField: "start_time",
		},
		{
			name:      "missing start",
			req:       model.ReservationRequest{VehicleID: 1, LocationID: 2, DurationHours: 3},
			wantField: "start_time",
		},
		{
			name:      "zero duration",
			req:       model.ReservationRequest{VehicleID: 1, LocationID: 2, StartTime: now.Add(time.Hour)},
			wantField: "duration_hours",
		},
		{
			name:      "duration above cap",
			req:       model.ReservationRequest{VehicleID: 1, LocationID: 2, StartTime: now.Add(time.Hour), DurationHours: 73},
			wantField: "duration_hours",
		},
		{
			name:      "missing location",
			req:       model.ReservationRequest{VehicleID: 1, StartTime: now.Add(time.Hour), DurationHours: 3},
			wantField: "location_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(&tt.req, now)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Details()[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestValidateDecision(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		d       model.AdminDecision
		wantErr bool
	}{
		{"confirm", model.AdminDecision{Decision: model.DecisionConfirm}, false},
		{"reject without reason", model.AdminDecision{Decision: model.DecisionReject}, false},
		{"reject with reason", model.AdminDecision{Decision: model.DecisionReject, Reason: "Event day"}, false},
		{"reject with short reason", model.AdminDecision{Decision: model.DecisionReject, Reason: "no"}, false},
		{"reject with one character reason", model.AdminDecision{Decision: model.DecisionReject, Reason: "x"}, false},
		{"reason too long", model.AdminDecision{Decision: model.DecisionReject, Reason: strings.Repeat("a", 501)}, true},
		{"unknown decision", model.AdminDecision{Decision: "maybe"}, true},
		{"empty decision", model.AdminDecision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDecision(&tt.d)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDecision() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCancel(t *testing.T) {
	v := newValidator()

	if err := v.ValidateCancel(&model.CancelRequest{Reason: "Plans changed"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateCancel(&model.CancelRequest{}); err == nil {
		t.Errorf("expected an empty reason to be rejected")
	}
}

func TestValidateStatusFilter(t *testing.T) {
	v := newValidator()

	for _, status := range []string{"", "pending", "confirmed", "rejected", "cancelled"} {
		if err := v.ValidateStatusFilter(status); err != nil {
			t.Errorf("status %q: unexpected error: %v", status, err)
		}
	}
	if err := v.ValidateStatusFilter("paid"); err == nil {
		t.Errorf("expected unknown status to be rejected")
	}
}
