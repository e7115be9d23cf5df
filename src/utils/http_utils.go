// backend/src/utils/http_utils.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/tradejournal/backend/src/logger"
)

// SendJSONError writes a JSON formatted error response.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	SendJSONErrorWithDetails(w, message, statusCode, nil)
}

// SendJSONErrorWithDetails writes a JSON error response carrying extra
// machine-readable fields next to the message.
func SendJSONErrorWithDetails(w http.ResponseWriter, message string, statusCode int, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if logger.L != nil {
		logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	}
	body := map[string]any{"error": message}
	for k, v := range details {
		body[k] = v
	}
	json.NewEncoder(w).Encode(body)
}

// SendJSON writes data as a JSON response with the given status code.
func SendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger.L != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}
