package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/apperrors"
	"github.com/airportsys/dbtunnel/pkg/audit"
	"github.com/airportsys/dbtunnel/pkg/services"
	"github.com/airportsys/dbtunnel/pkg/testhelpers"
)

var testTarget = apperrors.Target{Host: "db.internal", Port: 3306, Database: "airportsys"}

// newTestRouter wires the real service and handlers over pool. A nil pool
// leaves the connection manager uninitialized.
func newTestRouter(t *testing.T, pool *testhelpers.FakePool) http.Handler {
	t.Helper()
	mgr := datasource.NewConnectionManager(zap.NewNop())
	if pool != nil {
		mgr.SetPool(pool)
	}
	tunnel := services.NewTunnelService(mgr, audit.NewSecurityAuditor(zap.NewNop()), nil, zap.NewNop())

	return NewRouter(RouterConfig{
		Health: NewHealthHandler(tunnel, zap.NewNop()),
		Query:  NewQueryHandler(tunnel, NewRequestIDs(), testTarget, zap.NewNop()),
		Logger: zap.NewNop(),
	})
}

func doRequest(t *testing.T, h http.Handler, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		dec := json.NewDecoder(strings.NewReader(rec.Body.String()))
		dec.UseNumber()
		require.NoError(t, dec.Decode(&decoded), "body: %s", rec.Body.String())
	}
	return rec, decoded
}

func postJSON(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return doRequest(t, h, http.MethodPost, path, strings.NewReader(body))
}
