package persistence

import (
	"errors"
	"fmt"
)

// Standard error types every implementation returns, so callers can match
// with errors.Is regardless of backend.
var (
	// ErrDefinitionNotFound indicates no definition exists for the identifier.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionAlreadyExists indicates an insert collided with an
	// existing definition ID.
	ErrDefinitionAlreadyExists = errors.New("workflow definition already exists")

	// ErrNotPublished indicates an execution request against a draft.
	ErrNotPublished = errors.New("workflow definition is not published")

	// ErrSnapshotNotFound indicates no run snapshot exists for the instance.
	ErrSnapshotNotFound = errors.New("run snapshot not found")
)

// DefinitionError wraps a repository failure with its operation context.
type DefinitionError struct {
	Op           string
	DefinitionID string
	Err          error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s definition %s: %v", e.Op, e.DefinitionID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}
