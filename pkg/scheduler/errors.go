package scheduler

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a run stopped by the caller's cancellation signal. It is
// a run-level outcome, never a node error.
var ErrCancelled = errors.New("run cancelled")

// ConfigurationError covers defects knowable from the definition alone:
// dangling connections, unresolved branch labels, malformed node configs.
// Always fatal to the run and detected before any node executes where
// possible.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError

	return errors.As(err, &ce)
}

// ErrorKind classifies an executor failure.
type ErrorKind string

const (
	// ErrorKindTimeout marks a node whose execution budget expired. The
	// pipeline fails; the run state stays Failed, not Cancelled.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindUpstream wraps any other failure from the executor or the
	// external collaborator it delegates to.
	ErrorKindUpstream ErrorKind = "upstream"
)

// ExecutorError wraps a node execution failure with its pipeline key and kind.
type ExecutorError struct {
	NodeKey string
	Kind    ErrorKind
	Err     error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeKey, e.Kind, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a node timeout failure.
func IsTimeout(err error) bool {
	var ee *ExecutorError

	return errors.As(err, &ee) && ee.Kind == ErrorKindTimeout
}
