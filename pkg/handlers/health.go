package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/logging"
	"github.com/airportsys/dbtunnel/pkg/services"
)

// HealthResponse is returned by GET /health when the database answers.
type HealthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler reports whether the pool can reach the database.
type HealthHandler struct {
	tunnel services.TunnelService
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(tunnel services.TunnelService, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{tunnel: tunnel, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given router.
func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

// Health handles GET /health requests.
// It leases one connection, pings it and releases it. There are no retries.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	err := h.tunnel.Ping(r.Context())

	switch {
	case err == nil:
		if err := WriteJSON(w, http.StatusOK, HealthResponse{
			Success:   true,
			Message:   "Server and database connection are healthy",
			Timestamp: Timestamp(now()),
		}); err != nil {
			h.logger.Error("Failed to encode health response", zap.Error(err))
		}

	case errors.Is(err, datasource.ErrPoolNotInitialized):
		h.logger.Warn("Health check before pool initialization")
		if err := ErrorResponse(w, http.StatusServiceUnavailable, ErrorBody{
			Error:   "Database pool not initialized",
			Message: datasource.ErrPoolNotInitialized.Message,
		}); err != nil {
			h.logger.Error("Failed to encode health response", zap.Error(err))
		}

	default:
		message := err.Error()
		var dbErr *datasource.DBError
		if errors.As(err, &dbErr) {
			message = dbErr.Message
		}
		h.logger.Error("Health check failed", zap.String("error", logging.SanitizeMessage(message)))
		if err := ErrorResponse(w, http.StatusServiceUnavailable, ErrorBody{
			Error:   "Database connection unhealthy",
			Message: message,
		}); err != nil {
			h.logger.Error("Failed to encode health response", zap.Error(err))
		}
	}
}
