package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/logging"
	"github.com/airportsys/dbtunnel/pkg/retry"
)

// Bootstrap creates the target database if needed and opens the long-lived pool.
// Transient connection failures are retried up to retries times; anything
// else fails immediately.
func Bootstrap(
	ctx context.Context,
	dialect datasource.Dialect,
	cfg datasource.ConnectionConfig,
	retries int,
	logger *zap.Logger,
) (datasource.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return bootstrap(ctx, dialect, cfg, bootstrapRetryConfig(retries), logger)
}

func bootstrapRetryConfig(retries int) *retry.Config {
	retryCfg := retry.DefaultConfig()
	if retries < 0 {
		retries = 0
	}
	retryCfg.MaxRetries = retries
	return retryCfg
}

func bootstrap(
	ctx context.Context,
	dialect datasource.Dialect,
	cfg datasource.ConnectionConfig,
	retryCfg *retry.Config,
	logger *zap.Logger,
) (datasource.Pool, error) {
	fields := []zap.Field{
		zap.String("type", dialect.Type()),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	}

	logger.Info("Ensuring database exists", fields...)
	attempt := 0
	err := retry.DoIfRetryable(ctx, retryCfg, func() error {
		attempt++
		err := dialect.EnsureDatabase(ctx, cfg)
		if err != nil && retry.IsRetryable(err) {
			logger.Warn("Database not reachable yet",
				append(fields, zap.Int("attempt", attempt), zap.String("error", logging.SanitizeError(err)))...)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure database %q: %w", cfg.Database, err)
	}
	logger.Info("Database ready", fields...)

	pool, err := retry.DoIfRetryableWithResult(ctx, retryCfg, func() (datasource.Pool, error) {
		return dialect.OpenPool(ctx, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection pool: %w", err)
	}

	logger.Info("Database connection pool initialized",
		append(fields, zap.Int32("max_conns", cfg.MaxConns))...)
	return pool, nil
}
