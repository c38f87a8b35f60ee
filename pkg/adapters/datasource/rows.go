package datasource

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// scanSQLRows drains rows into column-keyed maps. Text-protocol drivers hand
// back raw bytes; those are converted using the column's database type so
// integers and floats reach the client as JSON numbers.
func scanSQLRows(rows *sql.Rows) ([]ColumnInfo, []map[string]any, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{Name: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
	}

	resultRows := make([]map[string]any, 0)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i], col.Type)
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, resultRows, nil
}

// normalizeValue converts a scanned driver value into something encoding/json
// renders the way clients expect.
func normalizeValue(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return convertBytes(x, dbType)
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		return x
	default:
		return x
	}
}

func convertBytes(b []byte, dbType string) any {
	typ := strings.TrimPrefix(dbType, "UNSIGNED ")

	switch typ {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR", "INT2", "INT4", "INT8":
		s := string(b)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
		return s
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return string(b)
	case "JSON", "JSONB":
		if json.Valid(b) {
			return json.RawMessage(append([]byte(nil), b...))
		}
		return string(b)
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BIT", "GEOMETRY", "IMAGE", "BYTEA":
		return append([]byte(nil), b...)
	case "UNIQUEIDENTIFIER":
		if len(b) == 16 {
			return mssqlGUIDString(b)
		}
		return string(b)
	default:
		// DECIMAL stays a string so no precision is lost.
		return string(b)
	}
}

// mssqlGUIDString formats SQL Server's mixed-endian GUID bytes.
func mssqlGUIDString(b []byte) string {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u.String()
}
