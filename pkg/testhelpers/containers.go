// Package testhelpers provides utilities for testing dbtunnel components.
package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// MariaDBTestImage is the server image the tunnel is integration-tested against.
const MariaDBTestImage = "mariadb:11.4"

const testRootPassword = "test_password"

// TestMySQL holds a shared MariaDB container. No application database is
// created up front; tests exercise the tunnel's own create-if-missing bootstrap.
type TestMySQL struct {
	Container testcontainers.Container
	Host      string
	Port      int
	User      string
	Password  string
}

var (
	sharedTestMySQL     *TestMySQL
	sharedTestMySQLOnce sync.Once
	sharedTestMySQLErr  error
)

// GetTestMySQL returns a shared MariaDB container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMySQL(t *testing.T) *TestMySQL {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestMySQLOnce.Do(func() {
		sharedTestMySQL, sharedTestMySQLErr = setupTestMySQL()
	})

	if sharedTestMySQLErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestMySQLErr)
	}

	return sharedTestMySQL
}

func setupTestMySQL() (*TestMySQL, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MariaDBTestImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": testRootPassword,
		},
		// The entrypoint starts a temporary server first; the second line is the real one.
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", port.Port(), err)
	}

	return &TestMySQL{
		Container: container,
		Host:      host,
		Port:      portNum,
		User:      "root",
		Password:  testRootPassword,
	}, nil
}

// ConnectionConfig returns settings targeting database on the shared container.
func (m *TestMySQL) ConnectionConfig(database string) datasource.ConnectionConfig {
	return datasource.ConnectionConfig{
		Host:     m.Host,
		Port:     m.Port,
		User:     m.User,
		Password: m.Password,
		Database: database,
		MaxConns: 4,
	}
}
