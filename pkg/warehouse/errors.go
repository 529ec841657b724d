package warehouse

import (
	"errors"
	"fmt"
)

// TableExistsError is returned when a materialization target already
// exists and overwrite was not requested. The caller can recover by
// choosing a different target or requesting overwrite.
type TableExistsError struct {
	Name string
}

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %s already exists", e.Name)
}

// IsTableExists reports whether err is a TableExistsError.
func IsTableExists(err error) bool {
	var target *TableExistsError
	return errors.As(err, &target)
}
