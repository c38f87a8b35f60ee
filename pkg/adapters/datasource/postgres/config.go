package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// maintenanceDatabase is connected to when the target database may not exist yet.
const maintenanceDatabase = "postgres"

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the SSL mode used when none is configured.
func DefaultSSLMode() string {
	return "prefer"
}

// buildConnectionString builds a PostgreSQL URL for database. User and
// password go through url.UserPassword so characters such as @, / and # in
// passwords survive parsing.
func buildConnectionString(cfg datasource.ConnectionConfig, database string) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort()
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
