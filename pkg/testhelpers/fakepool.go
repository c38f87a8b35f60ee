package testhelpers

import (
	"context"
	"sync"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// Call records one statement run through a FakePool connection.
type Call struct {
	Statement     string
	Params        []any
	Parameterized bool
}

// FakePool is an in-memory datasource.Pool that tracks leases so tests can
// assert every acquired connection is released exactly once.
type FakePool struct {
	// AcquireErr, when set, fails every Acquire.
	AcquireErr error
	// PingErr is returned by Conn.Ping.
	PingErr error
	// QueryFunc answers Query and QueryWithParams. Nil returns an empty result set.
	QueryFunc func(statement string, params []any) (*datasource.Result, error)

	mu       sync.Mutex
	inUse    int
	acquires int
	releases int
	calls    []Call
	closed   bool
}

var _ datasource.Pool = (*FakePool)(nil)

// NewFakePool returns a pool answering every statement with fn.
func NewFakePool(fn func(statement string, params []any) (*datasource.Result, error)) *FakePool {
	return &FakePool{QueryFunc: fn}
}

func (p *FakePool) Acquire(ctx context.Context) (datasource.Conn, error) {
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, datasource.NewDBError(datasource.CodeTimeout, err)
	}

	p.mu.Lock()
	p.inUse++
	p.acquires++
	p.mu.Unlock()
	return &fakeConn{pool: p}, nil
}

func (p *FakePool) Stats() datasource.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return datasource.PoolStats{MaxConns: 10, OpenConns: p.inUse, InUse: p.inUse}
}

func (p *FakePool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *FakePool) GetType() string { return "fake" }

// Acquires returns how many leases were granted.
func (p *FakePool) Acquires() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

// Releases returns how many leases were returned.
func (p *FakePool) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

// Calls returns the statements run so far.
func (p *FakePool) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Closed reports whether Close was called.
func (p *FakePool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeConn struct {
	pool    *FakePool
	release sync.Once
}

func (c *fakeConn) Ping(ctx context.Context) error {
	return c.pool.PingErr
}

func (c *fakeConn) Query(ctx context.Context, statement string) (*datasource.Result, error) {
	return c.run(Call{Statement: statement})
}

func (c *fakeConn) QueryWithParams(ctx context.Context, statement string, params []any) (*datasource.Result, error) {
	return c.run(Call{Statement: statement, Params: params, Parameterized: true})
}

func (c *fakeConn) run(call Call) (*datasource.Result, error) {
	c.pool.mu.Lock()
	c.pool.calls = append(c.pool.calls, call)
	c.pool.mu.Unlock()

	if c.pool.QueryFunc == nil {
		return &datasource.Result{HasResultSet: true}, nil
	}
	return c.pool.QueryFunc(call.Statement, call.Params)
}

func (c *fakeConn) Release() {
	c.release.Do(func() {
		c.pool.mu.Lock()
		c.pool.inUse--
		c.pool.releases++
		c.pool.mu.Unlock()
	})
}

// Rows builds a result set from column-keyed rows.
func Rows(rows ...map[string]any) *datasource.Result {
	if rows == nil {
		rows = []map[string]any{}
	}
	return &datasource.Result{Rows: rows, HasResultSet: true}
}

// Affected builds the result of a mutating statement.
func Affected(rowsAffected, lastInsertID int64) *datasource.Result {
	return &datasource.Result{RowsAffected: rowsAffected, LastInsertID: lastInsertID}
}
