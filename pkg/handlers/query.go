package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/apperrors"
	"github.com/airportsys/dbtunnel/pkg/jsonutil"
	"github.com/airportsys/dbtunnel/pkg/logging"
	"github.com/airportsys/dbtunnel/pkg/middleware"
	"github.com/airportsys/dbtunnel/pkg/services"
)

// MaxQueryLength is the longest accepted statement, in characters, after trimming.
const MaxQueryLength = 100_000

// RequestIDs hands out request ids that read like millisecond timestamps but
// never repeat, even for requests arriving in the same millisecond.
type RequestIDs struct {
	last  atomic.Int64
	clock func() time.Time
}

// NewRequestIDs creates a generator driven by the wall clock.
func NewRequestIDs() *RequestIDs {
	return &RequestIDs{clock: time.Now}
}

// Next returns max(previous+1, current time in ms).
func (g *RequestIDs) Next() int64 {
	for {
		prev := g.last.Load()
		next := g.clock().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if g.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// validationMessages are the client-facing texts for request validation errors.
var validationMessages = map[error]string{
	apperrors.ErrInvalidJSON:    "Invalid JSON request body",
	apperrors.ErrBodyTooLarge:   "Request body too large",
	apperrors.ErrMissingQuery:   "Missing required parameter: 'query'",
	apperrors.ErrQueryNotString: "Query must be a string",
	apperrors.ErrEmptyQuery:     "Query cannot be empty",
	apperrors.ErrQueryTooLong:   "Query exceeds maximum allowed length (100,000 characters)",
	apperrors.ErrParamsNotArray: "Parameters must be an array",
}

func validationMessage(err error) string {
	for sentinel, msg := range validationMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Invalid request"
}

// QueryResponse is returned by both query endpoints on success.
type QueryResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	RowCount  int64  `json:"rowCount"`
	RequestID int64  `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// QueryHandler serves the raw and parameterized query endpoints.
type QueryHandler struct {
	tunnel services.TunnelService
	ids    *RequestIDs
	target apperrors.Target
	logger *zap.Logger
}

// NewQueryHandler creates a QueryHandler. target names the configured
// database in connection error messages.
func NewQueryHandler(tunnel services.TunnelService, ids *RequestIDs, target apperrors.Target, logger *zap.Logger) *QueryHandler {
	if ids == nil {
		ids = NewRequestIDs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{tunnel: tunnel, ids: ids, target: target, logger: logger}
}

// RegisterRoutes registers the query endpoints on the given router.
func (h *QueryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/query", h.Query).Methods(http.MethodPost)
	r.HandleFunc("/api/query-safe", h.QuerySafe).Methods(http.MethodPost)
}

// Query handles POST /api/query: {"query": "..."} executed without binding.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	requestID := h.ids.Next()
	log := h.requestLogger(r, requestID)
	log.Info("Incoming query request")

	fields, err := decodeBody(r)
	if err != nil {
		h.badRequest(w, log, requestID, err)
		return
	}
	query, err := validateQuery(fields["query"])
	if err != nil {
		h.badRequest(w, log, requestID, err)
		return
	}

	result, err := h.tunnel.Execute(r.Context(), requestID, query)
	h.respond(w, log, requestID, result, err)
}

// QuerySafe handles POST /api/query-safe: {"query": "...", "params": [...]}
// with '?' placeholders bound by the driver.
func (h *QueryHandler) QuerySafe(w http.ResponseWriter, r *http.Request) {
	requestID := h.ids.Next()
	log := h.requestLogger(r, requestID)
	log.Info("Incoming parameterized query request")

	fields, err := decodeBody(r)
	if err != nil {
		h.badRequest(w, log, requestID, err)
		return
	}
	query, err := validateQuery(fields["query"])
	if err != nil {
		h.badRequest(w, log, requestID, err)
		return
	}
	params, err := decodeParams(fields["params"])
	if err != nil {
		h.badRequest(w, log, requestID, err)
		return
	}

	result, err := h.tunnel.ExecuteWithParams(r.Context(), requestID, query, params)
	h.respond(w, log, requestID, result, err)
}

func (h *QueryHandler) requestLogger(r *http.Request, requestID int64) *zap.Logger {
	return h.logger.With(
		zap.Int64("request_id", requestID),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	)
}

func (h *QueryHandler) respond(w http.ResponseWriter, log *zap.Logger, requestID int64, result *datasource.Result, err error) {
	if err != nil {
		h.databaseError(w, log, requestID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, QueryResponse{
		Success:   true,
		Data:      result.Data(),
		Message:   "Query executed successfully",
		RowCount:  result.RowCount(),
		RequestID: requestID,
		Timestamp: Timestamp(now()),
	}); err != nil {
		log.Error("Failed to encode query response", zap.Error(err))
	}
}

// databaseError maps a classified driver failure onto the error taxonomy.
func (h *QueryHandler) databaseError(w http.ResponseWriter, log *zap.Logger, requestID int64, err error) {
	dbErr := datasource.AsDBError(err, nil)
	resolved := apperrors.Resolve(dbErr.Code, dbErr.Message, h.target)

	log.Error("Database error",
		zap.String("code", dbErr.Code),
		zap.String("category", resolved.Category),
		zap.Int("status", resolved.Status),
		zap.String("error", logging.SanitizeMessage(dbErr.Message)),
	)

	if err := ErrorResponse(w, resolved.Status, ErrorBody{
		Error:     resolved.Category,
		Message:   resolved.Message,
		Details:   resolved.Details,
		Code:      resolved.Code,
		RequestID: requestID,
	}); err != nil {
		log.Error("Failed to encode error response", zap.Error(err))
	}
}

func (h *QueryHandler) badRequest(w http.ResponseWriter, log *zap.Logger, requestID int64, err error) {
	status := http.StatusBadRequest
	category := "Bad Request"
	if errors.Is(err, apperrors.ErrBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
		category = "Payload Too Large"
	}

	log.Warn("Invalid request", zap.String("reason", err.Error()))
	if err := ErrorResponse(w, status, ErrorBody{
		Error:     category,
		Message:   validationMessage(err),
		RequestID: requestID,
	}); err != nil {
		log.Error("Failed to encode error response", zap.Error(err))
	}
}

// decodeBody reads the request as a JSON object. An empty body, or valid JSON
// that is not an object, decodes to no fields.
func decodeBody(r *http.Request) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.ErrBodyTooLarge
		}
		return nil, apperrors.ErrInvalidJSON
	}

	fields := map[string]json.RawMessage{}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		if json.Valid(body) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, apperrors.ErrInvalidJSON
	}
	return fields, nil
}

// validateQuery applies the query checks in order and returns the trimmed text.
func validateQuery(raw json.RawMessage) (string, error) {
	if jsonutil.IsNull(raw) {
		return "", apperrors.ErrMissingQuery
	}
	query, ok := jsonutil.StringValue(raw)
	if !ok {
		return "", apperrors.ErrQueryNotString
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperrors.ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return "", apperrors.ErrQueryTooLong
	}
	return query, nil
}

func decodeParams(raw json.RawMessage) ([]any, error) {
	params, err := jsonutil.DecodeParams(raw)
	if err != nil {
		if errors.Is(err, jsonutil.ErrNotArray) {
			return nil, apperrors.ErrParamsNotArray
		}
		return nil, apperrors.ErrInvalidJSON
	}
	return params, nil
}
