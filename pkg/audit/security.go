// Package audit provides security audit logging for SIEM consumption.
// Events are logged as structured JSON under the "security_audit" logger name
// so they can be filtered out of the regular request log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/logging"
	"github.com/airportsys/dbtunnel/pkg/middleware"
	sqlstmt "github.com/airportsys/dbtunnel/pkg/sql"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a bound parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventRawQuery is logged whenever a statement runs without parameter binding.
	EventRawQuery SecurityEventType = "raw_query_execution"
)

// maxLoggedValueLen bounds parameter values copied into audit events.
const maxLoggedValueLen = 256

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     SecurityEventType `json:"event_type"`
	RequestID     int64             `json:"request_id"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Details       any               `json:"details"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a flagged parameter.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Query       string `json:"query"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a parameter that looks like SQL injection.
// Parameters are always bound by the driver, so the request is not blocked;
// the event is logged at WARN with "warning" severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, requestID int64, details SQLInjectionDetails) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxLoggedValueLen)
	details.Query = logging.SanitizeQuery(details.Query)

	event := a.newEvent(ctx, EventSQLInjectionAttempt, requestID, details, "warning")
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Suspicious query parameter",
		zap.String("event_json", string(eventJSON)),
		zap.Int64("request_id", requestID),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogRawQuery records a statement executed without parameter binding.
func (a *SecurityAuditor) LogRawQuery(ctx context.Context, requestID int64, query string) {
	sanitized := logging.SanitizeQuery(query)
	event := a.newEvent(ctx, EventRawQuery, requestID, map[string]string{"query": sanitized}, "info")
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Raw query executed",
		zap.String("event_json", string(eventJSON)),
		zap.Int64("request_id", requestID),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("query", sanitized),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// ScreenParams runs every string parameter through libinjection and logs the
// ones it flags. It returns the number of flagged parameters.
func (a *SecurityAuditor) ScreenParams(ctx context.Context, requestID int64, query string, params []any) int {
	results := sqlstmt.CheckAllParameters(params)
	for _, r := range results {
		a.LogInjectionAttempt(ctx, requestID, SQLInjectionDetails{
			ParamName:   r.ParamName,
			ParamValue:  fmt.Sprint(r.ParamValue),
			Fingerprint: r.Fingerprint,
			Query:       query,
		})
	}
	return len(results)
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, requestID int64, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		RequestID:     requestID,
		CorrelationID: middleware.GetCorrelationID(ctx),
		ClientIP:      middleware.GetClientIP(ctx),
		Details:       details,
		Severity:      severity,
	}
}
