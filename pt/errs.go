package pt

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation reports a document that references an undeclared
	// type or field, or otherwise breaks a document invariant.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrStaleReference reports a point or range addressing a key that is
	// no longer present in the document.
	ErrStaleReference = errors.New("stale reference")

	// ErrInvalidOperation reports an operation whose preconditions are not
	// met. The document is left unchanged.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrReadOnly reports an edit attempted while the document is marked
	// read-only.
	ErrReadOnly = errors.New("read-only violation")
)

var (
	ErrInvalidPath  = fmt.Errorf("%w: malformed path", ErrInvalidOperation)
	ErrNotReady     = fmt.Errorf("%w: editor has no value yet", ErrInvalidOperation)
	ErrInvalidValue = fmt.Errorf("%w: current value is invalid", ErrSchemaViolation)
)

// ErrorKind names the class of err as reported to hosts, or returns ""
// when err is none of the above.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrReadOnly):
		return "read-only"
	case errors.Is(err, ErrStaleReference):
		return "stale-reference"
	case errors.Is(err, ErrSchemaViolation):
		return "schema-violation"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid-operation"
	}
	return ""
}
