package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

// mappedStates are SQLSTATE codes with a dedicated client mapping.
var mappedStates = map[string]string{
	"28P01": datasource.CodeAccessDenied, // invalid_password
	"28000": datasource.CodeAccessDenied, // invalid_authorization_specification
	"3D000": datasource.CodeBadDB,        // invalid_catalog_name
	"42601": datasource.CodeSyntaxError,  // syntax_error
	"42P01": datasource.CodeNoSuchTable,  // undefined_table
	"42703": datasource.CodeBadField,     // undefined_column
	"57014": datasource.CodeTimeout,      // query_canceled, raised by statement_timeout
	"54000": datasource.CodeTooBigSelect, // program_limit_exceeded
	"57P01": datasource.CodeConnectionLost,
	"57P02": datasource.CodeConnectionLost,
	"57P03": datasource.CodeConnRefused, // cannot_connect_now
}

// conditionNames gives common unmapped SQLSTATEs their readable condition name.
var conditionNames = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23502": "not_null_violation",
	"23514": "check_violation",
	"22P02": "invalid_text_representation",
	"22001": "string_data_right_truncation",
	"40P01": "deadlock_detected",
	"40001": "serialization_failure",
	"42P07": "duplicate_table",
	"42883": "undefined_function",
	"42501": "insufficient_privilege",
	"53300": "too_many_connections",
}

// Classify converts pgx errors into *datasource.DBError.
func Classify(err error) *datasource.DBError {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &datasource.DBError{
			Code:    codeForState(pgErr.Code),
			Message: pgErr.Message,
			Err:     err,
		}
	}

	if code, ok := datasource.ClassifyTransportError(err); ok {
		return datasource.NewDBError(code, err)
	}

	if pgconn.Timeout(err) {
		return datasource.NewDBError(datasource.CodeTimeout, err)
	}

	return datasource.NewDBError(datasource.CodeUnknown, err)
}

func codeForState(state string) string {
	if code, ok := mappedStates[state]; ok {
		return code
	}
	if name, ok := conditionNames[state]; ok {
		return name
	}
	return state
}
