package validation

import (
	"errors"
	"testing"

	"uniparking/pkg/logger"
	"uniparking/pkg/model"
)

func TestValidator_Card(t *testing.T) {
	v := New(logger.Discard())

	tests := []struct {
		name      string
		card      model.Card
		wantField string
	}{
		{"valid visa", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "123"}, ""},
		{"valid with spaces", model.Card{Number: "4111 1111 1111 1111", Expiry: "01/30", CVV: "1234"}, ""},
		{"bad checksum", model.Card{Number: "4111111111111112", Expiry: "12/27", CVV: "123"}, "card_number"},
		{"bad month", model.Card{Number: "4111111111111111", Expiry: "13/27", CVV: "123"}, "expiry"},
		{"bad expiry shape", model.Card{Number: "4111111111111111", Expiry: "1227", CVV: "123"}, "expiry"},
		{"short cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "12"}, "cvv"},
		{"letters in cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "12a"}, "cvv"},
		{"decimal cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "1.5"}, "cvv"},
		{"negative cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "-12"}, "cvv"},
		{"signed cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: "+123"}, "cvv"},
		{"padded cvv", model.Card{Number: "4111111111111111", Expiry: "12/27", CVV: " 123"}, "cvv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.card)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Details()[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestValidator_LocationCode(t *testing.T) {
	v := New(logger.Discard())

	tests := []struct {
		code  string
		valid bool
	}{
		{"LOT1", true},
		{"ab12", true},
		{"AB1", false},
		{"AB123", false},
		{"AB-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			req := model.LocationCreate{Name: "North Lot", Code: tt.code, TotalSpaces: 10}
			err := v.Struct(&req)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.code, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.code)
			}
		})
	}
}

func TestValidator_AccessibleSpacesBound(t *testing.T) {
	v := New(logger.Discard())

	req := model.LocationCreate{Name: "North Lot", Code: "NL01", TotalSpaces: 5, AccessibleSpaces: 6}
	err := v.Struct(&req)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs.Details()["accessible_spaces"] == nil {
		t.Errorf("expected accessible_spaces error, got %v", verrs)
	}
}
