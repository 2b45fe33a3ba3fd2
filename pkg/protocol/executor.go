// Package protocol defines the contracts between the scheduler, the node
// executors, and the external collaborators they delegate to.
package protocol

import (
	"context"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// Result is what a node executor hands back to the scheduler.
type Result struct {
	// Output is the node's produced output map, stored on its pipeline.
	Output map[string]any

	// NextOverride, when non-nil, replaces the design's NextNodeKeys for
	// next-node computation. Used by condition (label selection happens in the
	// scheduler, the override carries the boolean branch) and fork.
	NextOverride []string
}

// NodeExecutor is the strategy for one node type. Executors consume resolved
// inputs and must honor ctx cancellation promptly; long-running delegations
// are bounded by the per-type timeout the scheduler applies.
type NodeExecutor interface {
	// Type returns the node type this executor serves.
	Type() models.NodeType

	// Timeout returns the default execution budget for this node type.
	Timeout() time.Duration

	// Execute runs the node. The run context is a read view; executors never
	// write pipelines themselves.
	Execute(ctx context.Context, design *models.NodeDesign, input map[string]any, rc *models.RunContext) (*Result, error)
}
