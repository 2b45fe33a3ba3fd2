// Package end provides the terminal node capturing a run's final result.
package end

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
	return models.NodeTypeEnd
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

// Execute captures the resolved input as the run's final result. End nodes
// have no successors and never fail.
func (e *Executor) Execute(_ context.Context, _ *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	return &protocol.Result{Output: input}, nil
}

// Schema returns the JSON schema for end node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
