package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/audit"
	"github.com/airportsys/dbtunnel/pkg/logging"
)

// Endpoint names used when reporting query outcomes.
const (
	EndpointRaw           = "query"
	EndpointParameterized = "query-safe"
)

// QueryObserver receives the outcome of every executed query.
// code is empty on success.
type QueryObserver interface {
	ObserveQuery(endpoint, code string, elapsed time.Duration)
}

// TunnelService runs already-validated statements against the managed pool.
// Every method leases at most one connection and releases it before returning.
// Errors from Ping, Execute and ExecuteWithParams are *datasource.DBError.
type TunnelService interface {
	// Ping checks the database is reachable through a pooled connection.
	Ping(ctx context.Context) error

	// Execute runs query verbatim without parameter binding.
	Execute(ctx context.Context, requestID int64, query string) (*datasource.Result, error)

	// ExecuteWithParams runs query with '?' placeholders bound to params.
	ExecuteWithParams(ctx context.Context, requestID int64, query string, params []any) (*datasource.Result, error)

	// SmokeTest ensures the scratch table exists, seeds it when empty and
	// logs its newest rows.
	SmokeTest(ctx context.Context, scratch datasource.ScratchTableSQL) error
}

type tunnelService struct {
	connMgr  *datasource.ConnectionManager
	auditor  *audit.SecurityAuditor
	observer QueryObserver
	logger   *zap.Logger
}

var _ TunnelService = (*tunnelService)(nil)

// NewTunnelService creates the execution core. auditor and observer may be nil.
func NewTunnelService(
	connMgr *datasource.ConnectionManager,
	auditor *audit.SecurityAuditor,
	observer QueryObserver,
	logger *zap.Logger,
) TunnelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tunnelService{
		connMgr:  connMgr,
		auditor:  auditor,
		observer: observer,
		logger:   logger.Named("tunnel"),
	}
}

func (s *tunnelService) Ping(ctx context.Context) error {
	conn, err := s.connMgr.Acquire(ctx)
	if err != nil {
		return datasource.AsDBError(err, nil)
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		return datasource.AsDBError(err, nil)
	}
	return nil
}

func (s *tunnelService) Execute(ctx context.Context, requestID int64, query string) (*datasource.Result, error) {
	if s.auditor != nil {
		s.auditor.LogRawQuery(ctx, requestID, query)
	}

	return s.run(ctx, EndpointRaw, requestID, query, func(conn datasource.Conn) (*datasource.Result, error) {
		return conn.Query(ctx, query)
	})
}

func (s *tunnelService) ExecuteWithParams(ctx context.Context, requestID int64, query string, params []any) (*datasource.Result, error) {
	if params == nil {
		params = []any{}
	}
	if s.auditor != nil {
		s.auditor.ScreenParams(ctx, requestID, query, params)
	}

	return s.run(ctx, EndpointParameterized, requestID, query, func(conn datasource.Conn) (*datasource.Result, error) {
		return conn.QueryWithParams(ctx, query, params)
	})
}

// run leases a connection for exactly one statement. The deferred release
// also covers a panic raised inside the driver.
func (s *tunnelService) run(
	ctx context.Context,
	endpoint string,
	requestID int64,
	query string,
	exec func(conn datasource.Conn) (*datasource.Result, error),
) (*datasource.Result, error) {
	start := time.Now()

	result, err := func() (*datasource.Result, error) {
		conn, err := s.connMgr.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Release()
		return exec(conn)
	}()

	elapsed := time.Since(start)
	if err == nil && result == nil {
		err = errors.New("driver returned no result")
	}
	if err != nil {
		dbErr := datasource.AsDBError(err, nil)
		s.observe(endpoint, dbErr.Code, elapsed)
		s.logger.Error("Query failed",
			zap.Int64("request_id", requestID),
			zap.String("endpoint", endpoint),
			zap.String("code", dbErr.Code),
			zap.String("error", logging.SanitizeMessage(dbErr.Message)),
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Duration("duration", elapsed),
		)
		return nil, dbErr
	}

	s.observe(endpoint, "", elapsed)
	s.logger.Info("Query executed",
		zap.Int64("request_id", requestID),
		zap.String("endpoint", endpoint),
		zap.Int64("row_count", result.RowCount()),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (s *tunnelService) observe(endpoint, code string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveQuery(endpoint, code, elapsed)
	}
}

func (s *tunnelService) SmokeTest(ctx context.Context, scratch datasource.ScratchTableSQL) error {
	conn, err := s.connMgr.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for smoke test: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Query(ctx, scratch.Create); err != nil {
		return fmt.Errorf("failed to create scratch table: %w", err)
	}

	counted, err := conn.Query(ctx, scratch.Count)
	if err != nil {
		return fmt.Errorf("failed to count scratch rows: %w", err)
	}
	count, err := firstInt64(counted)
	if err != nil {
		return fmt.Errorf("failed to read scratch row count: %w", err)
	}

	if count == 0 {
		seeded, err := conn.Query(ctx, scratch.Seed)
		if err != nil {
			return fmt.Errorf("failed to seed scratch table: %w", err)
		}
		s.logger.Info("Seeded scratch table", zap.Int64("rows", seeded.RowsAffected))
	}

	sample, err := conn.Query(ctx, scratch.Sample)
	if err != nil {
		return fmt.Errorf("failed to read scratch rows: %w", err)
	}
	s.logger.Info("Database smoke test passed",
		zap.Int64("existing_rows", count),
		zap.Any("sample", sample.Rows),
	)
	return nil
}

// firstInt64 reads the single value of a one-row, one-column result.
func firstInt64(result *datasource.Result) (int64, error) {
	if result == nil || len(result.Rows) == 0 {
		return 0, errors.New("no rows returned")
	}
	row := result.Rows[0]
	if len(result.Columns) > 0 {
		return toInt64(row[result.Columns[0].Name])
	}
	for _, v := range row {
		return toInt64(v)
	}
	return 0, errors.New("no columns returned")
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		out, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected count %q", n)
		}
		return out, nil
	case []byte:
		return toInt64(string(n))
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
