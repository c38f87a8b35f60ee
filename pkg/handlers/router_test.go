package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/testhelpers"
)

func TestNotFound_UnknownPath(t *testing.T) {
	router := newTestRouter(t, testhelpers.NewFakePool(nil))

	rec, body := doRequest(t, router, http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "Endpoint GET /nope does not exist", body["message"])
	assert.Equal(t, []any{"GET /health", "POST /api/query", "POST /api/query-safe"}, body["availableEndpoints"])
}

func TestNotFound_WrongMethod(t *testing.T) {
	pool := testhelpers.NewFakePool(nil)
	router := newTestRouter(t, pool)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/query"},
		{http.MethodDelete, "/api/query-safe"},
		{http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		rec, body := doRequest(t, router, tt.method, tt.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, "Endpoint "+tt.method+" "+tt.path+" does not exist", body["message"])
	}
	assert.Equal(t, 0, pool.Acquires())
}

func TestRouter_MetricsOptional(t *testing.T) {
	without := newTestRouter(t, nil)
	rec, _ := doRequest(t, without, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	with := NewRouter(RouterConfig{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}),
		Logger: zap.NewNop(),
	})
	rec, body := doRequest(t, with, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}
