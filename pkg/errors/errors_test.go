package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   NoSpaceAvailable(3, false),
			expected: "NO_SPACE_AVAILABLE: No parking space is free for the requested time",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("internal error", errors.New("connection refused")),
			expected: "INTERNAL_ERROR: internal error (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"location unavailable", LocationUnavailable(1, "maintenance", "resurfacing"), CodeLocationUnavailable, http.StatusConflict},
		{"no space", NoSpaceAvailable(1, true), CodeNoSpaceAvailable, http.StatusConflict},
		{"active session", ActiveSessionExists(7), CodeActiveSessionExists, http.StatusConflict},
		{"invalid payment", InvalidPaymentDetails(map[string]any{"cvv": "must be 3 or 4 digits"}), CodeInvalidPaymentDetails, http.StatusPaymentRequired},
		{"invalid transition", InvalidTransition("reservation", "rejected", "confirm"), CodeInvalidTransition, http.StatusConflict},
		{"storage conflict", StorageConflict(errors.New("40001")), CodeStorageConflict, http.StatusConflict},
		{"not found", NotFoundWithID("Reservation", "12"), CodeNotFound, http.StatusNotFound},
		{"forbidden", Forbidden("not your reservation"), CodeForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestLocationUnavailable_OmitsEmptyNote(t *testing.T) {
	err := LocationUnavailable(4, "closed", "")
	if _, ok := err.Details["note"]; ok {
		t.Errorf("expected no note detail, got %v", err.Details["note"])
	}

	err = LocationUnavailable(4, "maintenance", "line painting")
	if err.Details["note"] != "line painting" {
		t.Errorf("expected note detail, got %v", err.Details["note"])
	}
}

func TestStorageConflict_Unwraps(t *testing.T) {
	cause := errors.New("could not serialize access")
	err := StorageConflict(cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected StorageConflict to unwrap to its cause")
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("allocate: %w", NoSpaceAvailable(2, false))

	if !HasCode(wrapped, CodeNoSpaceAvailable) {
		t.Errorf("HasCode() should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeLocationUnavailable) {
		t.Errorf("HasCode() matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode() should be false for a plain error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Session")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}
	if AsAppError(fmt.Errorf("ctx: %w", appErr)) != appErr {
		t.Errorf("AsAppError() should unwrap wrapped AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, ActiveSessionExists(9))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != CodeActiveSessionExists {
		t.Errorf("expected code %s, got %s", CodeActiveSessionExists, body.Code)
	}
	if body.Message == "" {
		t.Errorf("expected a message explaining the failure")
	}
}
