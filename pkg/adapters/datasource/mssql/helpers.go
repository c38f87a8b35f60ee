package mssql

import (
	"strconv"
	"strings"

	sqlstmt "github.com/airportsys/dbtunnel/pkg/sql"
)

// escapeStringLiteral escapes a string for use in SQL Server string literals.
// In SQL Server, single quotes are escaped by doubling them.
func escapeStringLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteName is the client-side equivalent of QUOTENAME(): square brackets
// with ] escaped as ]].
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// rewritePlaceholders turns '?' into the driver's ordinal @p1, @p2, ...
func rewritePlaceholders(statement string) string {
	return sqlstmt.SQLServer.RewritePlaceholders(statement, func(n int) string {
		return "@p" + strconv.Itoa(n)
	})
}
