package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	sqlstmt "github.com/airportsys/dbtunnel/pkg/sql"
)

const driverName = "mysql"

// Dialect bootstraps and pools MySQL and MariaDB servers.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Type() string { return "mysql" }

func (Dialect) DefaultPort() int { return DefaultPort() }

// statementOptions is shared by every pool this dialect opens.
var statementOptions = datasource.StatementOptions{
	Classify:    Classify,
	ReturnsRows: sqlstmt.MySQL.ReturnsRows,
}

// EnsureDatabase creates cfg.Database over a single connection that has no
// schema selected.
func (Dialect) EnsureDatabase(ctx context.Context, cfg datasource.ConnectionConfig) error {
	db, err := sql.Open(driverName, buildDSN(cfg, false))
	if err != nil {
		return Classify(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return Classify(err)
	}

	if _, err := db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdentifier(cfg.Database)); err != nil {
		return Classify(err)
	}
	return nil
}

// OpenPool opens a pool bound to cfg.Database and verifies one connection.
func (Dialect) OpenPool(ctx context.Context, cfg datasource.ConnectionConfig) (datasource.Pool, error) {
	db, err := sql.Open(driverName, buildDSN(cfg, true))
	if err != nil {
		return nil, fmt.Errorf("open mysql pool: %w", Classify(err))
	}

	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql pool: %w", Classify(err))
	}

	return newPool(db), nil
}

func configurePool(db *sql.DB, cfg datasource.ConnectionConfig) {
	maxConns := int(cfg.MaxConns)
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	// Connections live until the server drops them; the driver discards broken ones.
	db.SetConnMaxLifetime(0)
}

func newPool(db *sql.DB) *datasource.SQLPool {
	return datasource.NewSQLPool(db, driverName, statementOptions)
}

// ScratchTable returns the smoke-test statements.
func (Dialect) ScratchTable() datasource.ScratchTableSQL {
	return datasource.ScratchTableSQL{
		Create: `CREATE TABLE IF NOT EXISTS sample_test (
  id INT AUTO_INCREMENT PRIMARY KEY,
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
