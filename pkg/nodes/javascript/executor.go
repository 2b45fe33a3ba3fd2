// Package javascript provides the sandboxed pure-transform node. Scripts run
// in a goja VM with no host access; the resolved input is exposed as `input`
// and the script's `main(input)` return value becomes the node output.
package javascript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrMissingScript indicates a javascript node without a script body.
var ErrMissingScript = errors.New("missing required config 'script'")

// ErrScriptTimeout indicates the VM was interrupted by the execution budget.
var ErrScriptTimeout = errors.New("script interrupted by timeout")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeJavaScript
}

func (e *Executor) Timeout() time.Duration {
	return 10 * time.Second
}

func (e *Executor) Execute(ctx context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	script := cast.ToString(design.Config["script"])
	if script == "" {
		return nil, ErrMissingScript
	}

	vm := goja.New()

	// Interrupt the VM when the scheduler's budget expires so a runaway
	// script cannot outlive its node dispatch.
	watchdog := make(chan struct{})
	defer close(watchdog)

	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ErrScriptTimeout)
		case <-watchdog:
		}
	}()

	if err := vm.Set("input", input); err != nil {
		return nil, fmt.Errorf("failed to bind input: %w", err)
	}

	if _, err := vm.RunString(script); err != nil {
		return nil, scriptError(err)
	}

	main, ok := goja.AssertFunction(vm.Get("main"))
	if !ok {
		return nil, errors.New("script must define main(input)")
	}

	value, err := main(goja.Undefined(), vm.ToValue(input))
	if err != nil {
		return nil, scriptError(err)
	}

	return &protocol.Result{Output: exportOutput(value)}, nil
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrScriptTimeout
	}

	return fmt.Errorf("script error: %w", err)
}

// exportOutput maps the script's return value onto a node output map. Object
// returns become the output directly; anything else lands under "result".
func exportOutput(value goja.Value) map[string]any {
	exported := value.Export()

	if obj, ok := exported.(map[string]any); ok {
		return obj
	}

	return map[string]any{"result": exported}
}

// Schema returns the JSON schema for javascript node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"description": "JavaScript source defining main(input). Pure transform, no host access.",
			},
			"timeout_seconds": map[string]any{"type": "number"},
		},
		"required": []any{"script"},
	}
}
