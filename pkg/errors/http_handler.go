package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteError renders err as the JSON error envelope. Non-AppErrors become 500s
// without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	response := ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Default().Error("failed to encode error response", "code", appErr.Code, "error", err)
	}
}
