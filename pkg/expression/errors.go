// Package expression resolves configured field values against a run's
// variable scope.
package expression

import (
	"errors"
	"fmt"
)

// Standard resolver error kinds. Each is fatal to the owning node; whether it
// fails the run is the scheduler's node-failure policy.
var (
	// ErrUnresolvedVariable indicates a variable reference into a namespace or
	// node output that is not available (yet).
	ErrUnresolvedVariable = errors.New("unresolved variable")

	// ErrInvalidJSONPath indicates a malformed json-path expression or an
	// out-of-range index.
	ErrInvalidJSONPath = errors.New("invalid json path")

	// ErrTemplate indicates a string-interpolation template that could not be
	// rendered completely.
	ErrTemplate = errors.New("template error")

	// ErrTypeMismatch indicates a resolved value that cannot be coerced to the
	// field's declared type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ResolutionError wraps a resolver failure with the owning field and expression.
type ResolutionError struct {
	Field      string
	Expression string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve field %q (%s): %v", e.Field, e.Expression, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsUnresolvedVariable checks if an error is an unresolved variable reference.
func IsUnresolvedVariable(err error) bool {
	return errors.Is(err, ErrUnresolvedVariable)
}

// IsInvalidJSONPath checks if an error is a json-path failure.
func IsInvalidJSONPath(err error) bool {
	return errors.Is(err, ErrInvalidJSONPath)
}

// IsTemplateError checks if an error is an interpolation failure.
func IsTemplateError(err error) bool {
	return errors.Is(err, ErrTemplate)
}
