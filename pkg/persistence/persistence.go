// Package persistence provides the storage abstraction for workflow
// definitions and run history.
package persistence

import (
	"context"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// DefinitionRepository stores workflow definitions. The scheduler only ever
// reads published definitions; drafts exist for the authoring surface.
type DefinitionRepository interface {
	Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error)
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, def *models.WorkflowDefinition) error
	DeleteDefinition(ctx context.Context, id string) error
}

// HistoryStore keeps terminal run snapshots for the execution-history
// surface. Entries may expire; history is an operational convenience, not a
// source of truth.
type HistoryStore interface {
	SaveSnapshot(ctx context.Context, snap *models.RunSnapshot) error
	SnapshotByInstanceID(ctx context.Context, instanceID string) (*models.RunSnapshot, error)
	SnapshotsByDefinition(ctx context.Context, definitionID string) ([]*models.RunSnapshot, error)
}

// Persistence bundles the repositories behind one lifecycle.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
