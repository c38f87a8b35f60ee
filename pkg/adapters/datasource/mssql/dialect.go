package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	sqlstmt "github.com/airportsys/dbtunnel/pkg/sql"
)

const driverName = "sqlserver"

// Dialect bootstraps and pools SQL Server.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func (Dialect) Type() string { return "sqlserver" }

func (Dialect) DefaultPort() int { return DefaultPort() }

var statementOptions = datasource.StatementOptions{
	Classify:            Classify,
	ReturnsRows:         sqlstmt.SQLServer.ReturnsRows,
	RewritePlaceholders: rewritePlaceholders,
}

// createDatabaseSQL creates name unless DB_ID already knows it.
func createDatabaseSQL(name string) string {
	return "IF DB_ID(N'" + escapeStringLiteral(name) + "') IS NULL CREATE DATABASE " + quoteName(name)
}

// EnsureDatabase creates cfg.Database over a single connection to the
// login's default database.
func (Dialect) EnsureDatabase(ctx context.Context, cfg datasource.ConnectionConfig) error {
	db, err := sql.Open(driverName, buildConnectionString(cfg, ""))
	if err != nil {
		return Classify(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return Classify(err)
	}
	if _, err := db.ExecContext(ctx, createDatabaseSQL(cfg.Database)); err != nil {
		return Classify(err)
	}
	return nil
}

// OpenPool opens a pool bound to cfg.Database and verifies one connection.
func (Dialect) OpenPool(ctx context.Context, cfg datasource.ConnectionConfig) (datasource.Pool, error) {
	db, err := sql.Open(driverName, buildConnectionString(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver pool: %w", Classify(err))
	}

	maxConns := int(cfg.MaxConns)
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver pool: %w", Classify(err))
	}

	return datasource.NewSQLPool(db, driverName, statementOptions), nil
}

// ScratchTable returns the smoke-test statements.
func (Dialect) ScratchTable() datasource.ScratchTableSQL {
	return datasource.ScratchTableSQL{
		Create: `IF OBJECT_ID(N'dbo.sample_test', N'U') IS NULL
CREATE TABLE dbo.sample_test (
  id INT IDENTITY(1,1) PRIMARY KEY,
  test_name NVARCHAR(100),
  created_at DATETIME2 DEFAULT SYSUTCDATETIME()
)`,
		Count: "SELECT COUNT(*) AS cnt FROM dbo.sample_test",
		Seed: `INSERT INTO dbo.sample_test (test_name) VALUES
  (N'Database Connection Test'),
  (N'AirportSys Database'),
  (N'MariaDB Server Active')`,
		Sample: "SELECT TOP 5 * FROM dbo.sample_test ORDER BY created_at DESC",
	}
}
