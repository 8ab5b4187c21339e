package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Row is one result row: column name to Go-native value.
type Row map[string]any

// Value returns the raw value for col and whether the column exists.
func (r Row) Value(col string) (any, bool) {
	v, ok := r[col]
	return v, ok
}

// String returns col as a string. NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// NullString returns col as a string pointer, nil for NULL or missing.
func (r Row) NullString(col string) *string {
	if v, ok := r[col]; !ok || v == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Int returns col as an int64, or def for NULL, missing or non-numeric values.
func (r Row) Int(col string, def int64) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte, string:
		n, err := strconv.ParseInt(strings.TrimSpace(r.String(col)), 10, 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Bool returns col as a bool. Numbers are true when non-zero; strings accept
// the usual spellings plus YES/NO as reported by information_schema.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case nil:
		return false
	case bool:
		return v
	case []byte, string:
		switch strings.ToUpper(strings.TrimSpace(r.String(col))) {
		case "1", "T", "TRUE", "Y", "YES":
			return true
		}
		return false
	default:
		return r.Int(col, 0) != 0
	}
}

// ScanRows reads all rows from the result set and returns them as Rows.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes rows.
// Driver errors are returned unmapped so the caller's dialect can classify them.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = dest[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
