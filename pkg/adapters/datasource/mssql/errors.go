package mssql

import (
	"errors"
	"strconv"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// mappedNumbers are server error numbers with a dedicated client mapping.
var mappedNumbers = map[int32]string{
	18456: datasource.CodeAccessDenied, // login failed
	4060:  datasource.CodeBadDB,        // cannot open database requested by the login
	911:   datasource.CodeBadDB,        // database does not exist
	102:   datasource.CodeSyntaxError,  // incorrect syntax near
	156:   datasource.CodeSyntaxError,  // incorrect syntax near keyword
	105:   datasource.CodeSyntaxError,  // unclosed quotation mark
	208:   datasource.CodeNoSuchTable,  // invalid object name
	207:   datasource.CodeBadField,     // invalid column name
}

// symbolicNames gives common unmapped errors a readable code.
var symbolicNames = map[int32]string{
	2627: "UNIQUE_KEY_VIOLATION",
	2601: "DUPLICATE_KEY_ROW",
	547:  "CONSTRAINT_VIOLATION",
	515:  "NULL_NOT_ALLOWED",
	1205: "DEADLOCK_VICTIM",
	1222: "LOCK_REQUEST_TIMEOUT",
	8152: "STRING_TRUNCATION",
	2628: "STRING_TRUNCATION",
	229:  "PERMISSION_DENIED",
}

// Classify converts go-mssqldb errors into *datasource.DBError.
func Classify(err error) *datasource.DBError {
	if err == nil {
		return nil
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return &datasource.DBError{
			Code:    codeForNumber(msErr.Number),
			Message: msErr.Message,
			Err:     err,
		}
	}

	if code, ok := datasource.ClassifyTransportError(err); ok {
		return datasource.NewDBError(code, err)
	}

	return datasource.NewDBError(datasource.CodeUnknown, err)
}

func codeForNumber(n int32) string {
	if code, ok := mappedNumbers[n]; ok {
		return code
	}
	if name, ok := symbolicNames[n]; ok {
		return name
	}
	return strconv.Itoa(int(n))
}
