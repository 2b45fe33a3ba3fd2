// Package foreach provides the iteration node. The executor validates the
// resolved array; the scheduler drives the body sub-graph once per element
// and aggregates the iteration results onto the foreach pipeline.
package foreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrNotArray indicates a foreach node whose "items" input is not an array.
// This is a configuration error and always fatal to the run.
var ErrNotArray = errors.New("foreach input 'items' is not an array")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeForEach
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

// Execute validates the iteration source. An empty array short-circuits to
// zero iterations.
func (e *Executor) Execute(_ context.Context, _ *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	items, err := Items(input)
	if err != nil {
		return nil, err
	}

	return &protocol.Result{Output: map[string]any{
		"items": items,
		"count": len(items),
	}}, nil
}

// Items extracts the iteration array from a foreach node's resolved input.
func Items(input map[string]any) ([]any, error) {
	raw, ok := input["items"]
	if !ok {
		return nil, fmt.Errorf("missing input 'items': %w", ErrNotArray)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("got %T: %w", raw, ErrNotArray)
	}

	return items, nil
}

// HaltOnError reports whether the design aborts remaining iterations on the
// first failure. Default is to continue and aggregate errors.
func HaltOnError(design *models.NodeDesign) bool {
	return cast.ToBool(design.Config["halt_on_error"])
}

// Schema returns the JSON schema for foreach node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"halt_on_error": map[string]any{
				"type":        "boolean",
				"description": "Abort remaining iterations after the first failure.",
				"default":     false,
			},
		},
	}
}
