package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Health  *HealthHandler
	Query   *QueryHandler
	Metrics http.Handler // nil leaves /metrics unrouted
	Logger  *zap.Logger
}

// NewRouter builds the tunnel's route table. Anything it does not match is
// answered by NotFound.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}
	if cfg.Query != nil {
		cfg.Query.RegisterRoutes(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	notFound := NotFound(cfg.Logger)
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound
	return r
}
