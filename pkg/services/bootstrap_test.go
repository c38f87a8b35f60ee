package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
	"github.com/airportsys/dbtunnel/pkg/retry"
	"github.com/airportsys/dbtunnel/pkg/testhelpers"
)

// scriptedDialect returns queued errors from EnsureDatabase and OpenPool.
type scriptedDialect struct {
	ensureErrs []error
	openErrs   []error
	pool       datasource.Pool

	ensureCalls int
	openCalls   int
	lastConfig  datasource.ConnectionConfig
}

func (d *scriptedDialect) Type() string     { return "scripted" }
func (d *scriptedDialect) DefaultPort() int { return 3306 }

func (d *scriptedDialect) EnsureDatabase(_ context.Context, cfg datasource.ConnectionConfig) error {
	d.ensureCalls++
	d.lastConfig = cfg
	if len(d.ensureErrs) == 0 {
		return nil
	}
	err := d.ensureErrs[0]
	d.ensureErrs = d.ensureErrs[1:]
	return err
}

func (d *scriptedDialect) OpenPool(_ context.Context, cfg datasource.ConnectionConfig) (datasource.Pool, error) {
	d.openCalls++
	if len(d.openErrs) > 0 {
		err := d.openErrs[0]
		d.openErrs = d.openErrs[1:]
		return nil, err
	}
	return d.pool, nil
}

func (d *scriptedDialect) ScratchTable() datasource.ScratchTableSQL {
	return datasource.ScratchTableSQL{}
}

func fastRetry(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func testConnConfig() datasource.ConnectionConfig {
	return datasource.ConnectionConfig{Host: "db", Port: 3306, User: "root", Password: "secret", Database: "airportsys", MaxConns: 10}
}

func refused() error {
	return datasource.NewDBError(datasource.CodeConnRefused, errors.New("dial tcp db:3306: connect: connection refused"))
}

func TestBootstrap_Success(t *testing.T) {
	pool := testhelpers.NewFakePool(nil)
	dialect := &scriptedDialect{pool: pool}

	got, err := bootstrap(context.Background(), dialect, testConnConfig(), fastRetry(3), zap.NewNop())
	require.NoError(t, err)

	assert.Same(t, pool, got)
	assert.Equal(t, 1, dialect.ensureCalls)
	assert.Equal(t, 1, dialect.openCalls)
	assert.Equal(t, "airportsys", dialect.lastConfig.Database)
}

func TestBootstrap_RetriesUnreachableHost(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dialect := &scriptedDialect{
		ensureErrs: []error{refused(), refused()},
		pool:       testhelpers.NewFakePool(nil),
	}

	_, err := bootstrap(context.Background(), dialect, testConnConfig(), fastRetry(3), zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 3, dialect.ensureCalls)
	assert.Equal(t, 2, logs.FilterMessage("Database not reachable yet").Len())
}

func TestBootstrap_PermanentFailureIsNotRetried(t *testing.T) {
	denied := &datasource.DBError{Code: datasource.CodeAccessDenied, Message: "Access denied for user 'root'@'10.0.0.2'"}
	dialect := &scriptedDialect{ensureErrs: []error{denied}}

	_, err := bootstrap(context.Background(), dialect, testConnConfig(), fastRetry(3), zap.NewNop())
	require.Error(t, err)

	assert.Equal(t, 1, dialect.ensureCalls)
	assert.Equal(t, 0, dialect.openCalls)
	assert.Contains(t, err.Error(), `failed to ensure database "airportsys"`)

	var dbErr *datasource.DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, datasource.CodeAccessDenied, dbErr.Code)
}

func TestBootstrap_RetriesExhausted(t *testing.T) {
	dialect := &scriptedDialect{ensureErrs: []error{refused(), refused(), refused()}}

	_, err := bootstrap(context.Background(), dialect, testConnConfig(), fastRetry(2), zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, 3, dialect.ensureCalls)
	assert.Equal(t, 0, dialect.openCalls)
}

func TestBootstrap_PoolFailure(t *testing.T) {
	dialect := &scriptedDialect{
		openErrs: []error{&datasource.DBError{Code: datasource.CodeBadDB, Message: "Unknown database 'airportsys'"}},
	}

	_, err := bootstrap(context.Background(), dialect, testConnConfig(), fastRetry(3), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database connection pool")
	assert.Equal(t, 1, dialect.openCalls)
}

func TestBootstrapRetryConfig(t *testing.T) {
	assert.Equal(t, 5, bootstrapRetryConfig(5).MaxRetries)
	assert.Equal(t, 0, bootstrapRetryConfig(-1).MaxRetries)
	assert.Equal(t, retry.DefaultConfig().InitialDelay, bootstrapRetryConfig(1).InitialDelay)
}

func TestBootstrap_NilLogger(t *testing.T) {
	dialect := &scriptedDialect{pool: testhelpers.NewFakePool(nil)}
	_, err := Bootstrap(context.Background(), dialect, testConnConfig(), 0, nil)
	assert.NoError(t, err)
}
