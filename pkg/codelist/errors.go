package codelist

import "fmt"

// SchemaMismatchError reports a file whose header does not match its
// declared schema.
type SchemaMismatchError struct {
	File    string
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: missing columns %v, unexpected columns %v", e.File, e.Missing, e.Extra)
}

// UnknownTypeConversionError reports a declared column type with no
// conversion rule.
type UnknownTypeConversionError struct {
	File   string
	Column string
	Type   ColumnType
}

func (e *UnknownTypeConversionError) Error() string {
	return fmt.Sprintf("no conversion rule for type %q (column %q, file %s)", e.Type, e.Column, e.File)
}

// TypeConversionError reports a value that failed conversion to its
// declared type.
type TypeConversionError struct {
	File   string
	Column string
	Value  string
	Type   ColumnType
	Cause  error
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s (column %q, file %s): %v", e.Value, e.Type, e.Column, e.File, e.Cause)
}

func (e *TypeConversionError) Unwrap() error {
	return e.Cause
}
