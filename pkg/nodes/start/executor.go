// Package start provides the entry node of every workflow graph.
package start

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
	return models.NodeTypeStart
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

// Execute exposes the trigger payload as the start node's output. It performs
// no other work and always succeeds.
func (e *Executor) Execute(_ context.Context, _ *models.NodeDesign, _ map[string]any, rc *models.RunContext) (*protocol.Result, error) {
	output := make(map[string]any, len(rc.RuntimeParameters))
	for k, v := range rc.RuntimeParameters {
		output[k] = v
	}

	return &protocol.Result{Output: output}, nil
}

// Schema returns the JSON schema for start node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
