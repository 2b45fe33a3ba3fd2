// Package fork provides the node declaring a set of parallel branches.
// Failures never originate here; they surface from branch nodes.
package fork

import (
	"context"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
)

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeFork
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

// Execute declares the branches; the scheduler performs the fan-out and the
// structural join.
func (e *Executor) Execute(_ context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	return &protocol.Result{
		Output: map[string]any{
			"branches": len(design.NextNodeKeys),
		},
		NextOverride: design.NextNodeKeys,
	}, nil
}

// Schema returns the JSON schema for fork node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
