package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	sqlstmt "github.com/airportsys/dbtunnel/pkg/sql"
)

// Dialect bootstraps and pools PostgreSQL servers.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Type() string { return "postgres" }

func (Dialect) DefaultPort() int { return DefaultPort() }

var statementOptions = datasource.StatementOptions{
	Classify:            Classify,
	RewritePlaceholders: rewritePlaceholders,
}

// rewritePlaceholders turns '?' into $1, $2, ...
func rewritePlaceholders(statement string) string {
	return sqlstmt.Postgres.RewritePlaceholders(statement, func(n int) string {
		return "$" + strconv.Itoa(n)
	})
}

// EnsureDatabase connects to the maintenance database and creates
// cfg.Database when pg_database has no row for it.
func (Dialect) EnsureDatabase(ctx context.Context, cfg datasource.ConnectionConfig) error {
	conn, err := pgx.Connect(ctx, buildConnectionString(cfg, maintenanceDatabase))
	if err != nil {
		return Classify(err)
	}
	defer conn.Close(context.Background())

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists)
	if err != nil {
		return Classify(err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE cannot take a bind parameter.
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{cfg.Database}.Sanitize()); err != nil {
		return Classify(err)
	}
	return nil
}

// OpenPool opens a pgxpool bound to cfg.Database and verifies one connection.
func (Dialect) OpenPool(ctx context.Context, cfg datasource.ConnectionConfig) (datasource.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", Classify(err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres pool: %w", Classify(err))
	}

	return datasource.NewPgxPool(pool, statementOptions), nil
}

func poolConfig(cfg datasource.ConnectionConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = 10
	}
	poolCfg.MinConns = cfg.MinConns
	return poolCfg, nil
}

// ScratchTable returns the smoke-test statements.
func (Dialect) ScratchTable() datasource.ScratchTableSQL {
	return datasource.ScratchTableSQL{
		Create: `CREATE TABLE IF NOT EXISTS sample_test (
  id SERIAL PRIMARY KEY,
  test_name VARCHAR(100),
  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
		Count: "SELECT COUNT(*) AS cnt FROM sample_test",
		Seed: `INSERT INTO sample_test (test_name) VALUES
  ('Database Connection Test'),
  ('AirportSys Database'),
  ('MariaDB Server Active')`,
		Sample: "SELECT * FROM sample_test ORDER BY created_at DESC LIMIT 5",
	}
}
