package errors

import "fmt"

// DBError is the base type for storage-layer failures. Op names the
// store operation that failed, in the snake_case form used for logs.
type DBError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
	cause   error
}

func NewDBError(op, msg string) *DBError {
	return &DBError{Op: op, Message: msg}
}

func (e *DBError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("store.%s: %s: %v", e.Op, e.Message, e.cause)
	}
	return fmt.Sprintf("store.%s: %s", e.Op, e.Message)
}

func (e *DBError) Unwrap() error {
	return e.cause
}

type DBInternalError struct {
	DBError
}

func NewDBInternalError(op string, cause error) *DBInternalError {
	return &DBInternalError{DBError{Op: op, Message: "internal error", cause: cause}}
}

type DBNotFoundError struct {
	DBError
}

func NewDBNotFoundError(op, msg string) *DBNotFoundError {
	return &DBNotFoundError{DBError{Op: op, Message: msg}}
}

type DBUniqueViolationError struct {
	DBError
	Column string
}

type DBForeignKeyViolationError struct {
	DBError
	ForeignKeyTable string
}
