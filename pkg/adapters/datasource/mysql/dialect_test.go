package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

func newMockPool(t *testing.T) (*datasource.SQLPool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	configurePool(db, datasource.ConnectionConfig{MaxConns: 2})
	return newPool(db), mock
}

func TestBuildDSN(t *testing.T) {
	cfg := datasource.ConnectionConfig{
		Host:     "db.local",
		User:     "airport",
		Password: "p@ss:word/#",
		Database: "airportsys",
	}

	parsed, err := driver.ParseDSN(buildDSN(cfg, true))
	require.NoError(t, err)
	assert.Equal(t, "airport", parsed.User)
	assert.Equal(t, "p@ss:word/#", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.local:3306", parsed.Addr)
	assert.Equal(t, "airportsys", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
	assert.False(t, parsed.InterpolateParams)

	cfg.Port = 3307
	parsed, err = driver.ParseDSN(buildDSN(cfg, false))
	require.NoError(t, err)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Empty(t, parsed.DBName)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`airportsys`", quoteIdentifier("airportsys"))
	assert.Equal(t, "`we``ird`", quoteIdentifier("we`ird"))
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered("mysql"))
	assert.Equal(t, 3306, datasource.GetDialect("mysql").DefaultPort())
}

func TestPool_QueryReturnsRows(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("INT", int64(0)),
		mock.NewColumn("test_name").OfType("VARCHAR", ""),
	).AddRow([]byte("1"), []byte("AirportSys Database")).
		AddRow([]byte("2"), []byte("MariaDB Server Active"))
	mock.ExpectQuery("SELECT id, test_name FROM sample_test").WillReturnRows(rows)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Stats().InUse)

	result, err := conn.Query(ctx, "SELECT id, test_name FROM sample_test")
	conn.Release()
	conn.Release()

	require.NoError(t, err)
	assert.Equal(t, 0, pool.Stats().InUse)
	assert.True(t, result.HasResultSet)
	assert.Equal(t, int64(2), result.RowCount())
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "test_name": "AirportSys Database"},
		{"id": int64(2), "test_name": "MariaDB Server Active"},
	}, result.Data())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_QueryWithParamsBindsArguments(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("sum").OfType("BIGINT", int64(0)),
	).AddRow([]byte("5"))
	mock.ExpectQuery("SELECT ? + ? AS sum").WithArgs(int64(2), int64(3)).WillReturnRows(rows)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	result, err := conn.QueryWithParams(ctx, "SELECT ? + ? AS sum", []any{int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"sum": int64(5)}}, result.Data())
	assert.Equal(t, int64(1), result.RowCount())
}

func TestPool_ExecReportsAffectedRows(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE sample_test SET test_name = ? WHERE id = ?").
		WithArgs("renamed", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sample_test (test_name) VALUES ('x')").
		WillReturnResult(sqlmock.NewResult(42, 1))

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	result, err := conn.QueryWithParams(ctx, "UPDATE sample_test SET test_name = ? WHERE id = ?", []any{"renamed", int64(1)})
	require.NoError(t, err)
	assert.False(t, result.HasResultSet)
	assert.Equal(t, int64(1), result.RowCount())

	result, err = conn.Query(ctx, "INSERT INTO sample_test (test_name) VALUES ('x')")
	require.NoError(t, err)
	assert.Equal(t, datasource.ExecSummary{AffectedRows: 1, InsertID: 42}, result.Data())
}

func TestPool_CTEMutationReportsAffectedRows(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	update := "WITH late AS (SELECT id FROM Flights WHERE eta > NOW()) UPDATE Flights SET status = 'Delayed' WHERE id IN (SELECT id FROM late)"
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("SELECT COUNT(*) INTO @n FROM Flights").WillReturnResult(sqlmock.NewResult(0, 1))

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	result, err := conn.Query(ctx, update)
	require.NoError(t, err)
	assert.False(t, result.HasResultSet)
	assert.Equal(t, datasource.ExecSummary{AffectedRows: 3}, result.Data())
	assert.Equal(t, int64(3), result.RowCount())

	result, err = conn.Query(ctx, "SELECT COUNT(*) INTO @n FROM Flights")
	require.NoError(t, err)
	assert.False(t, result.HasResultSet)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_VersionedCommentSelectReturnsRows(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("1").OfType("BIGINT", int64(0)),
	).AddRow([]byte("1"))
	mock.ExpectQuery("/*!40101 SELECT 1 */").WillReturnRows(rows)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	result, err := conn.Query(ctx, "/*!40101 SELECT 1 */")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"1": int64(1)}}, result.Data())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_CallWithoutResultSet(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	mock.ExpectQuery("CALL purge_stale_bookings()").WillReturnRows(sqlmock.NewRows([]string{}))

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	result, err := conn.Query(ctx, "CALL purge_stale_bookings()")
	require.NoError(t, err)
	assert.False(t, result.HasResultSet)
	assert.Equal(t, datasource.ExecSummary{}, result.Data())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_ErrorsAreClassifiedAndLeaseReleased(t *testing.T) {
	pool, mock := newMockPool(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM missing").
		WillReturnError(&driver.MySQLError{Number: 1146, Message: "Table 'airportsys.missing' doesn't exist"})

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)

	_, err = conn.Query(ctx, "SELECT * FROM missing")
	conn.Release()

	var dbErr *datasource.DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, datasource.CodeNoSuchTable, dbErr.Code)
	assert.Equal(t, "Table 'airportsys.missing' doesn't exist", dbErr.Message)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestScratchTable(t *testing.T) {
	stmts := Dialect{}.ScratchTable()
	assert.Contains(t, stmts.Create, "CREATE TABLE IF NOT EXISTS sample_test")
	assert.Contains(t, stmts.Seed, "'Database Connection Test'")
	assert.Contains(t, stmts.Seed, "'AirportSys Database'")
	assert.Contains(t, stmts.Seed, "'MariaDB Server Active'")
	assert.Contains(t, stmts.Sample, "LIMIT 5")
}
