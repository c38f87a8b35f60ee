package mysql

import (
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// DefaultPort returns the default MySQL/MariaDB port.
func DefaultPort() int {
	return 3306
}

const dialTimeout = 10 * time.Second

// buildDSN renders a go-sql-driver DSN. With withDatabase false no schema is
// selected, which is what CREATE DATABASE needs.
//
// Statements without arguments go over the text protocol; statements with
// arguments are prepared server-side (InterpolateParams stays off).
func buildDSN(cfg datasource.ConnectionConfig, withDatabase bool) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort()
	}

	c := driver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	c.Timeout = dialTimeout
	c.ParseTime = true
	c.Loc = time.UTC
	if withDatabase {
		c.DBName = cfg.Database
	}
	return c.FormatDSN()
}

// quoteIdentifier wraps name in backticks, doubling embedded backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
