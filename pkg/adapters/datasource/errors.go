package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
)

// Stable error codes reported to clients. Dialects translate their native
// driver errors into these; codes not listed here pass through verbatim.
const (
	CodePoolNotInitialized = "POOL_NOT_INITIALIZED"
	CodeAccessDenied       = "ER_ACCESS_DENIED_ERROR"
	CodeBadDB              = "ER_BAD_DB_ERROR"
	CodeSyntaxError        = "ER_SYNTAX_ERROR"
	CodeParseError         = "ER_PARSE_ERROR"
	CodeNoSuchTable        = "ER_NO_SUCH_TABLE"
	CodeBadField           = "ER_BAD_FIELD_ERROR"
	CodeConnRefused        = "ECONNREFUSED"
	CodeHostNotFound       = "ENOTFOUND"
	CodeConnectionLost     = "PROTOCOL_CONNECTION_LOST"
	CodeFatalError         = "PROTOCOL_ENQUEUE_AFTER_FATAL_ERROR"
	CodeTimeout            = "PROTOCOL_TIMEOUT"
	CodeTooBigSelect       = "ER_TOO_BIG_SELECT"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// ErrPoolNotInitialized is returned when a request arrives before the pool exists.
var ErrPoolNotInitialized = &DBError{
	Code:    CodePoolNotInitialized,
	Message: "Database connection pool not initialized",
}

// DBError is a driver failure tagged with a stable code.
type DBError struct {
	Code    string
	Message string // driver message
	Err     error
}

func (e *DBError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the stable code.
func (e *DBError) ErrorCode() string {
	return e.Code
}

// IsRetryable reports whether the failure is transient at the transport
// level. Hosts that do not resolve yet count, since compose stacks start
// the tunnel alongside the database.
func (e *DBError) IsRetryable() bool {
	switch e.Code {
	case CodeConnRefused, CodeHostNotFound, CodeConnectionLost, CodeTimeout:
		return true
	}
	return false
}

// NewDBError wraps err with code, using err's text as the message.
func NewDBError(code string, err error) *DBError {
	msg := "Unknown database error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &DBError{Code: code, Message: msg, Err: err}
}

// Classifier turns a native driver error into a *DBError.
type Classifier func(err error) *DBError

// AsDBError returns err as a *DBError, classifying with fallback when it is not one already.
func AsDBError(err error, fallback Classifier) *DBError {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	if fallback != nil {
		return fallback(err)
	}
	return NewDBError(CodeUnknown, err)
}

// ClassifyTransportError recognises failures below the SQL layer that look
// the same for every driver: refused connections, DNS failures, dropped
// sockets, deadlines and sessions that can no longer be used.
func ClassifyTransportError(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeHostNotFound, true
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CodeConnRefused, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout, true
	}

	if errors.Is(err, sql.ErrConnDone) {
		return CodeFatalError, true
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return CodeConnectionLost, true
	}

	return "", false
}
