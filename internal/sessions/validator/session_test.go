package validator

import (
	"errors"
	"testing"

	"uniparking/pkg/logger"
	"uniparking/pkg/model"
	"uniparking/pkg/validation"

	"github.com/shopspring/decimal"
)

func newValidator() *SessionValidator {
	return NewSessionValidator(validation.New(logger.Discard()), 24, 12)
}

func TestValidateStart(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name      string
		req       model.SessionStart
		wantField string
	}{
		{
			name: "valid",
			req:  model.SessionStart{VehicleID: 1, LocationID: 2, DurationHours: 3, AmountPaid: decimal.RequireFromString("7.50")},
		},
		{
			name:      "missing vehicle",
			req:       model.SessionStart{LocationID: 2, DurationHours: 3},
			wantField: "vehicle_id",
		},
		{
			name:      "zero duration",
			req:       model.SessionStart{VehicleID: 1, LocationID: 2},
			wantField: "duration_hours",
		},
		{
			name:      "duration above cap",
			req:       model.SessionStart{VehicleID: 1, LocationID: 2, DurationHours: 25},
			wantField: "duration_hours",
		},
		{
			name:      "negative amount",
			req:       model.SessionStart{VehicleID: 1, LocationID: 2, DurationHours: 1, AmountPaid: decimal.NewFromInt(-1)},
			wantField: "amount_paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStart(&tt.req)
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

func TestValidateExtend(t *testing.T) {
	v := newValidator()

	if err := v.ValidateExtend(&model.SessionExtend{AdditionalHours: 2}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateExtend(&model.SessionExtend{AdditionalHours: 0}); err == nil {
		t.Errorf("expected zero hours to be rejected")
	}
	if err := v.ValidateExtend(&model.SessionExtend{AdditionalHours: 13}); err == nil {
		t.Errorf("expected hours above the cap to be rejected")
	}
}
