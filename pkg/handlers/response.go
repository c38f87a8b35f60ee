package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// timestampLayout matches JavaScript's Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// now is replaced in tests.
var now = time.Now

// Timestamp renders t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Details   string `json:"details,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID int64  `json:"requestId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, body ErrorBody) error {
	body.Success = false
	if body.Timestamp == "" {
		body.Timestamp = Timestamp(now())
	}
	return WriteJSON(w, statusCode, body)
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
