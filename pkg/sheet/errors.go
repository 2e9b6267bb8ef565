package sheet

import "fmt"

// PersistenceError means the table could not be reached or rejected a write.
// No row number is assigned when it is returned.
type PersistenceError struct {
	Op    string
	Table string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s table %q: %v", e.Op, e.Table, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
