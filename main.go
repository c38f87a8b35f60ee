package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	_ "github.com/airportsys/dbtunnel/pkg/adapters/datasource/mssql"
	_ "github.com/airportsys/dbtunnel/pkg/adapters/datasource/mysql"
	_ "github.com/airportsys/dbtunnel/pkg/adapters/datasource/postgres"
	"github.com/airportsys/dbtunnel/pkg/apperrors"
	"github.com/airportsys/dbtunnel/pkg/audit"
	"github.com/airportsys/dbtunnel/pkg/config"
	"github.com/airportsys/dbtunnel/pkg/handlers"
	"github.com/airportsys/dbtunnel/pkg/logging"
	"github.com/airportsys/dbtunnel/pkg/metrics"
	"github.com/airportsys/dbtunnel/pkg/middleware"
	"github.com/airportsys/dbtunnel/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Error("Failed to load configuration", zap.Error(err))
		_ = fallback.Sync()
		return 1
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if !datasource.IsRegistered(cfg.Database.Type) {
		var available []string
		for _, info := range datasource.RegisteredDialects() {
			available = append(available, info.Type)
		}
		logger.Error("Unsupported DB_TYPE",
			zap.String("db_type", cfg.Database.Type),
			zap.String("available", strings.Join(available, ", ")),
		)
		return 1
	}
	dialect := datasource.GetDialect(cfg.Database.Type)

	connCfg := datasource.ConnectionConfig{
		Host:     cfg.Database.DialHost(),
		Port:     cfg.Database.PortOr(dialect.DefaultPort()),
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	}

	logger.Info("Configuration loaded",
		zap.String("version", Version),
		zap.String("environment", cfg.Env),
		zap.String("db_type", dialect.Type()),
		zap.String("db_host", connCfg.Host),
		zap.Int("db_port", connCfg.Port),
		zap.String("db_name", connCfg.Database),
		zap.Int32("pool_max_conns", connCfg.MaxConns),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connMgr := datasource.NewConnectionManager(logger)
	queryMetrics := metrics.New(connMgr)
	tunnel := services.NewTunnelService(connMgr, audit.NewSecurityAuditor(logger), queryMetrics, logger)

	pool, err := services.Bootstrap(ctx, dialect, connCfg, cfg.Database.BootstrapRetries, logger)
	if err != nil {
		logger.Error("Failed to initialize database", zap.String("error", logging.SanitizeError(err)))
		return 1
	}
	connMgr.SetPool(pool)
	defer func() { _ = connMgr.Close() }()

	if err := tunnel.SmokeTest(ctx, dialect.ScratchTable()); err != nil {
		logger.Warn("Database smoke test failed", zap.String("error", logging.SanitizeError(err)))
	}

	routerCfg := handlers.RouterConfig{
		Health: handlers.NewHealthHandler(tunnel, logger),
		Query: handlers.NewQueryHandler(tunnel, handlers.NewRequestIDs(), apperrors.Target{
			Host:     connCfg.Host,
			Port:     connCfg.Port,
			Database: connCfg.Database,
		}, logger),
		Logger: logger,
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = queryMetrics.Handler()
	}

	var handler http.Handler = handlers.NewRouter(routerCfg)
	handler = middleware.BodyLimit(cfg.BodyLimitBytes)(handler)
	handler = middleware.Recover(logger, cfg.IsDevelopment())(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.CorrelationID()(handler)
	handler = middleware.CORS(cfg.AllowedOrigins())(handler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.Strings("endpoints", handlers.AvailableEndpoints),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return 1
	}
	logger.Info("Server stopped")
	return 0
}
