package mysql

import (
	"errors"
	"strconv"

	driver "github.com/go-sql-driver/mysql"
	my "github.com/siddontang/go-mysql/mysql"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// erQueryTimeout is raised when max_execution_time aborts a SELECT (MySQL 5.7+).
const erQueryTimeout = 3024

// mappedCodes are server error numbers with a dedicated client mapping.
var mappedCodes = map[uint16]string{
	my.ER_ACCESS_DENIED_ERROR: datasource.CodeAccessDenied,
	my.ER_BAD_DB_ERROR:        datasource.CodeBadDB,
	my.ER_SYNTAX_ERROR:        datasource.CodeSyntaxError,
	my.ER_PARSE_ERROR:         datasource.CodeParseError,
	my.ER_NO_SUCH_TABLE:       datasource.CodeNoSuchTable,
	my.ER_BAD_FIELD_ERROR:     datasource.CodeBadField,
	my.ER_TOO_BIG_SELECT:      datasource.CodeTooBigSelect,
	erQueryTimeout:            datasource.CodeTimeout,
}

// symbolicNames gives common unmapped errors a readable code for clients.
var symbolicNames = map[uint16]string{
	my.ER_DUP_ENTRY:                       "ER_DUP_ENTRY",
	my.ER_DBACCESS_DENIED_ERROR:           "ER_DBACCESS_DENIED_ERROR",
	my.ER_TABLEACCESS_DENIED_ERROR:        "ER_TABLEACCESS_DENIED_ERROR",
	my.ER_NO_DB_ERROR:                     "ER_NO_DB_ERROR",
	my.ER_BAD_NULL_ERROR:                  "ER_BAD_NULL_ERROR",
	my.ER_NON_UNIQ_ERROR:                  "ER_NON_UNIQ_ERROR",
	my.ER_TABLE_EXISTS_ERROR:              "ER_TABLE_EXISTS_ERROR",
	my.ER_DUP_FIELDNAME:                   "ER_DUP_FIELDNAME",
	my.ER_WRONG_VALUE_COUNT_ON_ROW:        "ER_WRONG_VALUE_COUNT_ON_ROW",
	my.ER_LOCK_WAIT_TIMEOUT:               "ER_LOCK_WAIT_TIMEOUT",
	my.ER_LOCK_DEADLOCK:                   "ER_LOCK_DEADLOCK",
	my.ER_NO_REFERENCED_ROW_2:             "ER_NO_REFERENCED_ROW_2",
	my.ER_ROW_IS_REFERENCED_2:             "ER_ROW_IS_REFERENCED_2",
	my.ER_DATA_TOO_LONG:                   "ER_DATA_TOO_LONG",
	my.ER_TRUNCATED_WRONG_VALUE_FOR_FIELD: "ER_TRUNCATED_WRONG_VALUE_FOR_FIELD",
	my.ER_QUERY_INTERRUPTED:               "ER_QUERY_INTERRUPTED",
	my.ER_CON_COUNT_ERROR:                 "ER_CON_COUNT_ERROR",
	my.ER_SP_DOES_NOT_EXIST:               "ER_SP_DOES_NOT_EXIST",
}

// Classify converts go-sql-driver errors into *datasource.DBError.
func Classify(err error) *datasource.DBError {
	if err == nil {
		return nil
	}

	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return &datasource.DBError{
			Code:    codeForNumber(myErr.Number),
			Message: myErr.Message,
			Err:     err,
		}
	}

	if errors.Is(err, driver.ErrInvalidConn) {
		return datasource.NewDBError(datasource.CodeConnectionLost, err)
	}

	if code, ok := datasource.ClassifyTransportError(err); ok {
		return datasource.NewDBError(code, err)
	}

	return datasource.NewDBError(datasource.CodeUnknown, err)
}

func codeForNumber(n uint16) string {
	if code, ok := mappedCodes[n]; ok {
		return code
	}
	if name, ok := symbolicNames[n]; ok {
		return name
	}
	return strconv.Itoa(int(n))
}
