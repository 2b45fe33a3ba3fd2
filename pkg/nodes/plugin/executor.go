// Package plugin provides the node delegating to an external plugin
// invocation (MCP, OpenAPI, or native tools).
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrMissingPluginRef indicates a plugin node without plugin_id or function.
var ErrMissingPluginRef = errors.New("missing required config 'plugin_id'/'function'")

type Executor struct {
	invoker protocol.PluginInvoker
}

func NewExecutor(invoker protocol.PluginInvoker) *Executor {
	return &Executor{invoker: invoker}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypePlugin
}

func (e *Executor) Timeout() time.Duration {
	return 120 * time.Second
}

// Execute invokes the configured plugin function with the resolved inputs as
// arguments.
func (e *Executor) Execute(ctx context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	pluginID := cast.ToString(design.Config["plugin_id"])
	function := cast.ToString(design.Config["function"])

	if pluginID == "" || function == "" {
		return nil, ErrMissingPluginRef
	}

	result, err := e.invoker.Invoke(ctx, pluginID, function, input)
	if err != nil {
		return nil, fmt.Errorf("plugin %s.%s failed: %w", pluginID, function, err)
	}

	return &protocol.Result{Output: map[string]any{
		"result": result,
	}}, nil
}

// Schema returns the JSON schema for plugin node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plugin_id": map[string]any{"type": "string"},
			"function":  map[string]any{"type": "string"},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"description": "Override for the default execution budget.",
			},
		},
		"required": []any{"plugin_id", "function"},
	}
}
