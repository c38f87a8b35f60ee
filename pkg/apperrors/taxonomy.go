package apperrors

import (
	"fmt"
	"net/http"
)

// CategoryDatabaseError is the category of every code without its own mapping.
const CategoryDatabaseError = "Database Error"

// Target identifies the configured database for messages that name it.
type Target struct {
	Host     string
	Port     int
	Database string
}

// Mapping describes how one database error code is reported to clients.
type Mapping struct {
	Status   int
	Category string

	// message renders the client-facing text.
	message func(t Target) string

	// IncludeDetails adds the driver message as "details".
	IncludeDetails bool
}

// Resolved is a fully rendered client error.
type Resolved struct {
	Status   int
	Category string
	Message  string
	Details  string // driver message, only for syntax, table and column errors
	Code     string // only for codes without their own mapping
}

func fixed(msg string) func(Target) string {
	return func(Target) string { return msg }
}

var taxonomy = map[string]Mapping{
	"POOL_NOT_INITIALIZED": {
		Status:   http.StatusServiceUnavailable,
		Category: "Service Unavailable",
		message:  fixed("Database connection pool not initialized"),
	},
	"ER_ACCESS_DENIED_ERROR": {
		Status:   http.StatusUnauthorized,
		Category: "Authentication Failed",
		message:  fixed("Database authentication failed. Check DB_USER and DB_PASSWORD in .env"),
	},
	"ER_BAD_DB_ERROR": {
		Status:   http.StatusNotFound,
		Category: "Database Not Found",
		message: func(t Target) string {
			return fmt.Sprintf("Database '%s' does not exist", t.Database)
		},
	},
	"ER_SYNTAX_ERROR": {
		Status:         http.StatusBadRequest,
		Category:       "SQL Syntax Error",
		message:        fixed("The SQL query contains syntax errors"),
		IncludeDetails: true,
	},
	"ER_PARSE_ERROR": {
		Status:         http.StatusBadRequest,
		Category:       "SQL Syntax Error",
		message:        fixed("The SQL query contains syntax errors"),
		IncludeDetails: true,
	},
	"ER_NO_SUCH_TABLE": {
		Status:         http.StatusNotFound,
		Category:       "Table Not Found",
		message:        fixed("One or more tables referenced in the query do not exist"),
		IncludeDetails: true,
	},
	"ER_BAD_FIELD_ERROR": {
		Status:         http.StatusBadRequest,
		Category:       "Invalid Column",
		message:        fixed("One or more columns referenced in the query do not exist"),
		IncludeDetails: true,
	},
	"ECONNREFUSED": {
		Status:   http.StatusServiceUnavailable,
		Category: "Database Connection Failed",
		message: func(t Target) string {
			return fmt.Sprintf("Cannot connect to database server at %s:%d. Ensure the database server is running.", t.Host, t.Port)
		},
	},
	"ENOTFOUND": {
		Status:   http.StatusServiceUnavailable,
		Category: "Database Host Not Found",
		message: func(t Target) string {
			return "Cannot resolve database host: " + t.Host
		},
	},
	"PROTOCOL_CONNECTION_LOST": {
		Status:   http.StatusServiceUnavailable,
		Category: "Connection Lost",
		message:  fixed("Database connection was lost during query execution"),
	},
	"PROTOCOL_ENQUEUE_AFTER_FATAL_ERROR": {
		Status:   http.StatusServiceUnavailable,
		Category: "Fatal Database Error",
		message:  fixed("A fatal database error occurred. Please try again."),
	},
	"PROTOCOL_TIMEOUT": {
		Status:   http.StatusGatewayTimeout,
		Category: "Query Timeout",
		message:  fixed("Query execution took too long and was terminated"),
	},
	"ER_TOO_BIG_SELECT": {
		Status:   http.StatusRequestEntityTooLarge,
		Category: "Result Set Too Large",
		message:  fixed("The query result set is too large. Consider adding LIMIT clause."),
	},
}

// Lookup returns the mapping registered for code.
func Lookup(code string) (Mapping, bool) {
	m, ok := taxonomy[code]
	return m, ok
}

// Resolve renders the client error for a classified database failure.
// Unmapped codes become a 500 carrying the driver message and the code.
func Resolve(code, driverMessage string, target Target) Resolved {
	if driverMessage == "" {
		driverMessage = "Unknown database error"
	}

	m, ok := taxonomy[code]
	if !ok {
		if code == "" {
			code = "UNKNOWN_ERROR"
		}
		return Resolved{
			Status:   http.StatusInternalServerError,
			Category: CategoryDatabaseError,
			Message:  driverMessage,
			Code:     code,
		}
	}

	r := Resolved{
		Status:   m.Status,
		Category: m.Category,
		Message:  m.message(target),
	}
	if m.IncludeDetails {
		r.Details = driverMessage
	}
	return r
}
