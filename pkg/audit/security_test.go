package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/airportsys/dbtunnel/pkg/middleware"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

// requestContext returns the context CorrelationID builds for a request.
func requestContext(t *testing.T, correlationID, remoteAddr string) context.Context {
	t.Helper()
	var ctx context.Context
	handler := middleware.CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/query-safe", nil)
	req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	req.RemoteAddr = remoteAddr
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, ctx)
	return ctx
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
	assert.NotNil(t, NewSecurityAuditor(nil).logger)
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	tests := []struct {
		name              string
		ctx               context.Context
		wantCorrelationID string
		wantClientIP      string
	}{
		{
			name:              "with request context",
			ctx:               requestContext(t, "corr-1", "192.168.1.100:4000"),
			wantCorrelationID: "corr-1",
			wantClientIP:      "192.168.1.100",
		},
		{
			name: "without request context",
			ctx:  context.Background(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded.TakeAll()

			auditor.LogInjectionAttempt(tt.ctx, 1700000000001, SQLInjectionDetails{
				ParamName:   "params[0]",
				ParamValue:  "'; DROP TABLE flights--",
				Fingerprint: "s&1c",
				Query:       "SELECT * FROM flights WHERE code = ?",
			})

			logs := recorded.All()
			require.Len(t, logs, 1, "Expected exactly one log entry")

			entry := logs[0]
			assert.Equal(t, zapcore.WarnLevel, entry.Level)
			assert.Equal(t, "security_audit", entry.LoggerName)
			assert.Equal(t, "Suspicious query parameter", entry.Message)

			fields := entry.ContextMap()
			assert.Equal(t, int64(1700000000001), fields["request_id"])
			assert.Equal(t, "params[0]", fields["param_name"])
			assert.Equal(t, "s&1c", fields["fingerprint"])
			assert.Equal(t, tt.wantClientIP, fields["client_ip"])
			assert.Equal(t, tt.wantCorrelationID, fields["correlation_id"])
			assert.Equal(t, "warning", fields["severity"])

			eventJSON, ok := fields["event_json"].(string)
			require.True(t, ok, "event_json should be a string")

			var event SecurityEvent
			require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))
			assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
			assert.Equal(t, int64(1700000000001), event.RequestID)
			assert.Equal(t, tt.wantClientIP, event.ClientIP)

			detailsMap, ok := event.Details.(map[string]any)
			require.True(t, ok, "Details should be a map")
			assert.Equal(t, "'; DROP TABLE flights--", detailsMap["param_value"])
			assert.Equal(t, "SELECT * FROM flights WHERE code = ?", detailsMap["query"])
		})
	}
}

func TestLogInjectionAttempt_TruncatesValue(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInjectionAttempt(context.Background(), 1, SQLInjectionDetails{
		ParamName:  "params[0]",
		ParamValue: "' OR 1=1 --" + strings.Repeat("x", 1000),
	})

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(recorded.All()[0].ContextMap()["event_json"].(string)), &event))
	value := event.Details.(map[string]any)["param_value"].(string)
	assert.Len(t, []rune(value), maxLoggedValueLen+3)
}

func TestLogRawQuery(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogRawQuery(requestContext(t, "corr-raw", "172.16.0.1:80"), 42, "ALTER USER app IDENTIFIED BY password=hunter2")

	logs := recorded.All()
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "Raw query executed", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, int64(42), fields["request_id"])
	assert.Equal(t, "corr-raw", fields["correlation_id"])
	assert.Equal(t, "172.16.0.1", fields["client_ip"])
	assert.Equal(t, "info", fields["severity"])
	assert.NotContains(t, fields["query"], "hunter2")

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventRawQuery, event.EventType)
}

func TestScreenParams(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	flagged := auditor.ScreenParams(context.Background(), 7,
		"SELECT * FROM gates WHERE terminal = ? AND code = ?",
		[]any{"T1", "1' OR '1'='1", int64(3), nil},
	)

	assert.Equal(t, 1, flagged)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "params[1]", logs[0].ContextMap()["param_name"])
}

func TestScreenParams_Clean(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.Equal(t, 0, auditor.ScreenParams(context.Background(), 8, "SELECT ?", []any{"BA117", 2.5, true}))
	assert.Equal(t, 0, recorded.Len())
}
