package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSON writes v as the response body with the given status code. Bodies are
// marshalled up front so an encoding failure can still produce a clean 500
// instead of a truncated 2xx.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	if v == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshalling response body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error"}`))
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// apiError is the error envelope shared by every argowatch endpoint.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error writes the error envelope with the given status code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, apiError{Error: code, Message: message})
}
