package operators

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrConfiguration = errors.New("invalid operator configuration")
	ErrExecution     = errors.New("operator execution failed")
	ErrUnsupportedOp = errors.New("unsupported operator")
)

// ConfigurationError reports a graph description that cannot be bound to an
// operator: a missing or unresolvable argument role, or a missing or
// mistyped attribute.
type ConfigurationError struct {
	Op     string // Operator kind
	Field  string // Argument role or attribute name
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(op, field, reason string) *ConfigurationError {
	return &ConfigurationError{Op: op, Field: field, Reason: reason}
}

// ExecutionError reports a kernel failure while encoding work for the device.
type ExecutionError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrExecution, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

func execErr(op string, err error) *ExecutionError {
	return &ExecutionError{Op: op, Err: err}
}
