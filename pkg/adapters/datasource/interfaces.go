package datasource

import (
	"context"
	"time"
)

// ConnectionConfig holds dialect-neutral connection settings for one target database.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // postgres and sqlserver

	// MaxConns bounds concurrent sessions. Callers beyond it queue for a lease.
	MaxConns int32
	MinConns int32
}

// Pool is a bounded set of database sessions. Every request leases at most
// one Conn and releases it before the response is written.
type Pool interface {
	// Acquire leases a session, blocking while the pool is saturated.
	// Errors are *DBError.
	Acquire(ctx context.Context) (Conn, error)

	// Stats reports current pool occupancy.
	Stats() PoolStats

	// Close closes every session in the pool.
	Close() error

	// GetType returns the dialect name for logging/stats.
	GetType() string
}

// Conn is a single leased session. Errors returned by its methods are *DBError.
type Conn interface {
	// Ping checks the session is alive.
	Ping(ctx context.Context) error

	// Query runs a statement verbatim without parameter binding.
	Query(ctx context.Context, statement string) (*Result, error)

	// QueryWithParams runs a statement with '?' placeholders bound to params
	// by the driver.
	QueryWithParams(ctx context.Context, statement string, params []any) (*Result, error)

	// Release returns the session to the pool. Calls after the first are no-ops.
	Release()
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	MaxConns     int           `json:"maxConns"`
	OpenConns    int           `json:"openConns"`
	InUse        int           `json:"inUse"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"waitCount"`
	WaitDuration time.Duration `json:"waitDuration"`
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "VARCHAR", "INT4")
}

// Result is the outcome of one statement. Statements that produce a result
// set fill Rows; mutating statements fill RowsAffected and LastInsertID.
type Result struct {
	Columns      []ColumnInfo
	Rows         []map[string]any
	HasResultSet bool
	RowsAffected int64
	LastInsertID int64
}

// ExecSummary is the client-facing payload of a mutating statement.
type ExecSummary struct {
	AffectedRows int64 `json:"affectedRows"`
	InsertID     int64 `json:"insertId"`
}

// RowCount is the number of rows returned for a result set, or the
// affected-row count reported by the driver otherwise.
func (r *Result) RowCount() int64 {
	if r.HasResultSet {
		return int64(len(r.Rows))
	}
	return r.RowsAffected
}

// Data is the client-facing payload: the row list for result sets, an
// ExecSummary otherwise.
func (r *Result) Data() any {
	if r.HasResultSet {
		if r.Rows == nil {
			return []map[string]any{}
		}
		return r.Rows
	}
	return ExecSummary{AffectedRows: r.RowsAffected, InsertID: r.LastInsertID}
}

// ScratchTableSQL holds the dialect-specific statements for the startup smoke test.
type ScratchTableSQL struct {
	Create string // create the table if missing
	Count  string // single row, single integer column
	Seed   string // insert the fixed rows
	Sample string // newest rows first
}

// Dialect knows how to bootstrap and pool one database engine.
type Dialect interface {
	// Type is the DB_TYPE value selecting this dialect.
	Type() string

	DefaultPort() int

	// EnsureDatabase opens a single unpooled session without selecting a
	// database, creates cfg.Database if it does not exist, and closes the session.
	EnsureDatabase(ctx context.Context, cfg ConnectionConfig) error

	// OpenPool creates the long-lived pool bound to cfg.Database.
	OpenPool(ctx context.Context, cfg ConnectionConfig) (Pool, error)

	ScratchTable() ScratchTableSQL
}
