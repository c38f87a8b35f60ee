package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatementOptions carries the dialect rules a pool wrapper needs.
type StatementOptions struct {
	// Classify converts native driver errors. Required.
	Classify Classifier

	// ReturnsRows decides whether a statement produces a result set. Only
	// used by database/sql pools; pgx reports it from the wire.
	ReturnsRows func(statement string) bool

	// RewritePlaceholders converts '?' placeholders to the dialect's native
	// syntax. Nil leaves the statement unchanged.
	RewritePlaceholders func(statement string) string
}

func (o StatementOptions) rewrite(statement string) string {
	if o.RewritePlaceholders == nil {
		return statement
	}
	return o.RewritePlaceholders(statement)
}

func (o StatementOptions) classify(err error) error {
	if err == nil {
		return nil
	}
	return AsDBError(err, o.Classify)
}

// SQLPool wraps *sql.DB to implement Pool.
type SQLPool struct {
	db     *sql.DB
	dbType string
	opts   StatementOptions
}

// NewSQLPool wraps an open *sql.DB. The caller has already applied pool limits.
func NewSQLPool(db *sql.DB, dbType string, opts StatementOptions) *SQLPool {
	return &SQLPool{db: db, dbType: dbType, opts: opts}
}

// Acquire leases one session from the pool.
func (p *SQLPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, p.opts.classify(err)
	}
	return &sqlConn{conn: conn, opts: p.opts}, nil
}

// Stats reports database/sql pool occupancy.
func (p *SQLPool) Stats() PoolStats {
	s := p.db.Stats()
	return PoolStats{
		MaxConns:     s.MaxOpenConnections,
		OpenConns:    s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// Close closes all connections in the pool
func (p *SQLPool) Close() error {
	return p.db.Close()
}

// GetType returns the database type
func (p *SQLPool) GetType() string {
	return p.dbType
}

type sqlConn struct {
	conn    *sql.Conn
	opts    StatementOptions
	release sync.Once
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.opts.classify(c.conn.PingContext(ctx))
}

func (c *sqlConn) Query(ctx context.Context, statement string) (*Result, error) {
	// No args keeps drivers on their text protocol; nothing is prepared.
	return c.run(ctx, statement, nil)
}

func (c *sqlConn) QueryWithParams(ctx context.Context, statement string, params []any) (*Result, error) {
	return c.run(ctx, c.opts.rewrite(statement), params)
}

func (c *sqlConn) run(ctx context.Context, statement string, args []any) (*Result, error) {
	if c.opts.ReturnsRows != nil && c.opts.ReturnsRows(statement) {
		rows, err := c.conn.QueryContext(ctx, statement, args...)
		if err != nil {
			return nil, c.opts.classify(err)
		}
		defer rows.Close()

		columns, resultRows, err := scanSQLRows(rows)
		if err != nil {
			return nil, c.opts.classify(err)
		}
		// A CALL whose procedure selects nothing yields no columns. The driver
		// drops the OK packet here, so only the shape can be reported.
		if len(columns) == 0 {
			return &Result{}, nil
		}
		return &Result{Columns: columns, Rows: resultRows, HasResultSet: true}, nil
	}

	res, err := c.conn.ExecContext(ctx, statement, args...)
	if err != nil {
		return nil, c.opts.classify(err)
	}

	result := &Result{}
	if n, err := res.RowsAffected(); err == nil {
		result.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		result.LastInsertID = id
	}
	return result, nil
}

func (c *sqlConn) Release() {
	c.release.Do(func() {
		_ = c.conn.Close()
	})
}

// PgxPool wraps *pgxpool.Pool to implement Pool.
type PgxPool struct {
	pool *pgxpool.Pool
	opts StatementOptions
}

// NewPgxPool wraps an open *pgxpool.Pool.
func NewPgxPool(pool *pgxpool.Pool, opts StatementOptions) *PgxPool {
	return &PgxPool{pool: pool, opts: opts}
}

// Acquire leases one connection from the pool.
func (p *PgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, p.opts.classify(err)
	}
	return &pgxConn{conn: conn, opts: p.opts}, nil
}

// Stats reports pgxpool occupancy.
func (p *PgxPool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		MaxConns:     int(s.MaxConns()),
		OpenConns:    int(s.TotalConns()),
		InUse:        int(s.AcquiredConns()),
		Idle:         int(s.IdleConns()),
		WaitCount:    s.EmptyAcquireCount(),
		WaitDuration: s.AcquireDuration(),
	}
}

// Close closes all connections in the PostgreSQL pool
func (p *PgxPool) Close() error {
	p.pool.Close()
	return nil
}

// GetType returns the database type
func (p *PgxPool) GetType() string {
	return "postgres"
}

type pgxConn struct {
	conn    *pgxpool.Conn
	opts    StatementOptions
	release sync.Once
}

func (c *pgxConn) Ping(ctx context.Context) error {
	return c.opts.classify(c.conn.Ping(ctx))
}

func (c *pgxConn) Query(ctx context.Context, statement string) (*Result, error) {
	// Simple protocol sends the text as-is with no server-side prepare.
	return c.run(ctx, statement, []any{pgx.QueryExecModeSimpleProtocol})
}

func (c *pgxConn) QueryWithParams(ctx context.Context, statement string, params []any) (*Result, error) {
	return c.run(ctx, c.opts.rewrite(statement), params)
}

func (c *pgxConn) run(ctx context.Context, statement string, args []any) (*Result, error) {
	rows, err := c.conn.Query(ctx, statement, args...)
	if err != nil {
		return nil, c.opts.classify(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = ColumnInfo{Name: fd.Name, Type: pgTypeName(c.conn.Conn().TypeMap(), fd.DataTypeOID)}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, c.opts.classify(fmt.Errorf("failed to read row values: %w", err))
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i], col.Type)
		}
		resultRows = append(resultRows, rowMap)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, c.opts.classify(err)
	}

	if len(fieldDescs) == 0 {
		return &Result{RowsAffected: rows.CommandTag().RowsAffected()}, nil
	}
	return &Result{Columns: columns, Rows: resultRows, HasResultSet: true}, nil
}

func (c *pgxConn) Release() {
	c.release.Do(c.conn.Release)
}

// pgTypeName resolves a type OID through the connection's type map.
func pgTypeName(m *pgtype.Map, oid uint32) string {
	if t, ok := m.TypeForOID(oid); ok {
		return strings.ToUpper(t.Name)
	}
	return "UNKNOWN"
}
