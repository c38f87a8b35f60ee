package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// AvailableEndpoints is advertised by the 404 fallback.
var AvailableEndpoints = []string{
	"GET /health",
	"POST /api/query",
	"POST /api/query-safe",
}

// NotFoundResponse is returned for any unknown path or method.
type NotFoundResponse struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error"`
	Message            string   `json:"message"`
	AvailableEndpoints []string `json:"availableEndpoints"`
}

// NotFound answers every unmatched route, including known paths called
// with the wrong method.
func NotFound(logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := WriteJSON(w, http.StatusNotFound, NotFoundResponse{
			Success:            false,
			Error:              "Not Found",
			Message:            fmt.Sprintf("Endpoint %s %s does not exist", r.Method, r.URL.Path),
			AvailableEndpoints: AvailableEndpoints,
		}); err != nil {
			logger.Error("Failed to encode not found response", zap.Error(err))
		}
	})
}
