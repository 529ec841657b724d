// Package codelist loads clinical code → phenotype mappings from CSV files,
// validates them against a declared column-type schema and stages them into
// the warehouse for extraction joins.
package codelist

import (
	"strconv"
	"strings"
	"time"
)

// ColumnType is the closed set of declared column types a codelist or
// source description may use.
type ColumnType string

const (
	TypeCharacter ColumnType = "character"
	TypeNumeric   ColumnType = "numeric"
	TypeInteger   ColumnType = "integer"
	TypeBigInt    ColumnType = "bigint"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeDatetime  ColumnType = "datetime"
)

// ColumnDef declares one column of a delimited input file.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// FileSchema is the ordered column declaration for one input file.
type FileSchema []ColumnDef

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Convert parses a raw string value into the Go value for its declared
// type. Failures are typed: an undeclared type yields
// UnknownTypeConversionError, a bad value yields TypeConversionError.
// Callers attach file and column context via the error fields.
func Convert(value string, columnType ColumnType) (any, error) {
	switch columnType {
	case TypeCharacter:
		return value, nil
	case TypeNumeric:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return f, nil
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return int(n), nil
	case TypeBigInt:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return n, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return b, nil
	case TypeDate:
		t, err := time.Parse(dateLayout, strings.TrimSpace(value))
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return t, nil
	case TypeDatetime:
		raw := strings.TrimSpace(value)
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse(datetimeLayout, raw)
		if err != nil {
			return nil, &TypeConversionError{Value: value, Type: columnType, Cause: err}
		}
		return t, nil
	}

	return nil, &UnknownTypeConversionError{Type: columnType}
}
