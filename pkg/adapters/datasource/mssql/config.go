package mssql

import (
	"net"
	"net/url"
	"strconv"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// encryptSetting maps the shared DB_SSLMODE values onto go-mssqldb's encrypt
// parameter. "require" encrypts without verifying the certificate, matching
// libpq semantics.
func encryptSetting(sslMode string) (encrypt string, trustServerCert bool) {
	switch sslMode {
	case "disable":
		return "disable", false
	case "require":
		return "true", true
	case "verify-ca", "verify-full":
		return "true", false
	default:
		return "false", false
	}
}

// buildConnectionString builds a sqlserver:// URL. An empty database
// connects to the login's default database.
func buildConnectionString(cfg datasource.ConnectionConfig, database string) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort()
	}

	query := url.Values{}
	if database != "" {
		query.Add("database", database)
	}
	encrypt, trust := encryptSetting(cfg.SSLMode)
	query.Add("encrypt", encrypt)
	if trust {
		query.Add("TrustServerCertificate", "true")
	}
	query.Add("connection timeout", strconv.Itoa(DefaultConnectionTimeout()))

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
