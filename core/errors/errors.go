// Package errors provides the error taxonomy shared by the rate table codec,
// the table database and the command line tool.
//
// Failures fall in four categories, each with its own sentinel so callers can
// use errors.Is without parsing messages:
//
//   - ErrIO: a file could not be opened, read or written.
//   - ErrFormat: the bytes or text do not follow the table format.
//   - ErrInconsistent: the table is well formed but its fields disagree.
//   - ErrInvalidArgument: the calling code broke a database contract
//     (appending a duplicate, deleting a missing table, ...).
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a table or file was not found
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a table with the same number is already present
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument indicates a caller contract violation
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFormat indicates malformed binary or text input
	ErrFormat = errors.New("format violation")
	// ErrInconsistent indicates a table whose fields contradict each other
	ErrInconsistent = errors.New("inconsistent table")
	// ErrIO indicates an I/O failure
	ErrIO = errors.New("i/o failure")
)

// NotFoundError represents a missing table or entry. It matches both
// ErrNotFound and ErrInvalidArgument.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "table", "database")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Is reports caller contract violations as ErrInvalidArgument too.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrInvalidArgument
}

// ExistsError is returned when adding something that must not exist yet.
type ExistsError struct {
	Resource string
	ID       string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

func (e *ExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// Is reports caller contract violations as ErrInvalidArgument too.
func (e *ExistsError) Is(target error) bool {
	return target == ErrAlreadyExists || target == ErrInvalidArgument
}

// ValidationError represents a semantic inconsistency between table fields.
type ValidationError struct {
	Field   string // Field name that failed validation, if a single one did
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInconsistent
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes every IOError match ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// FormatError represents a violation of the binary or text table format.
// Line and Column are 1-based and only set for text input.
type FormatError struct {
	Format  string // "binary" or "text"
	Line    int
	Column  int
	Message string
}

func (e *FormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
	case e.Line > 0:
		return fmt.Sprintf("%s at line %d", e.Message, e.Line)
	}
	return e.Message
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewExists creates an ExistsError
func NewExists(resource, id string) *ExistsError {
	return &ExistsError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Binaryf creates a FormatError for binary input.
func Binaryf(format string, args ...interface{}) *FormatError {
	return &FormatError{
		Format:  "binary",
		Message: fmt.Sprintf(format, args...),
	}
}

// Textf creates a FormatError for text input located at the given line.
func Textf(line int, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Format:  "text",
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}

// TextAtf creates a FormatError for text input located at a line and column.
func TextAtf(line, column int, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Format:  "text",
		Line:    line,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}
