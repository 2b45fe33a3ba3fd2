// Package condition provides the boolean branching node. The scheduler routes
// along the connection whose label matches the produced boolean.
package condition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrNotBoolean indicates a condition whose input did not resolve to a boolean.
var ErrNotBoolean = errors.New("condition did not resolve to a boolean")

// ErrBadOperator indicates an unsupported comparison operator.
var ErrBadOperator = errors.New("unsupported comparison operator")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeCondition
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

// Execute evaluates either a direct boolean input ("condition") or a
// comparison of the "left" and "right" inputs under the configured operator.
// The result is strictly boolean - anything else is an execution error, never
// silently truthy, because branch selection depends on it.
func (e *Executor) Execute(_ context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	operator := cast.ToString(design.Config["operator"])

	var (
		result bool
		err    error
	)

	if operator == "" {
		result, err = asBool(input["condition"])
	} else {
		result, err = compare(input["left"], input["right"], operator)
	}

	if err != nil {
		return nil, err
	}

	return &protocol.Result{
		Output:       map[string]any{"result": result},
		NextOverride: []string{strconv.FormatBool(result)},
	}, nil
}

func asBool(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("got %T: %w", value, ErrNotBoolean)
	}

	return b, nil
}

func compare(left, right any, operator string) (bool, error) {
	switch operator {
	case "eq", "==":
		return cast.ToString(left) == cast.ToString(right), nil
	case "ne", "!=":
		return cast.ToString(left) != cast.ToString(right), nil
	}

	l, err := cast.ToFloat64E(left)
	if err != nil {
		return false, fmt.Errorf("left operand %v: %w", left, ErrNotBoolean)
	}

	r, err := cast.ToFloat64E(right)
	if err != nil {
		return false, fmt.Errorf("right operand %v: %w", right, ErrNotBoolean)
	}

	switch operator {
	case "gt", ">":
		return l > r, nil
	case "gte", ">=":
		return l >= r, nil
	case "lt", "<":
		return l < r, nil
	case "lte", "<=":
		return l <= r, nil
	default:
		return false, fmt.Errorf("%q: %w", operator, ErrBadOperator)
	}
}

// Schema returns the JSON schema for condition node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operator": map[string]any{
				"type":        "string",
				"description": "Comparison applied to the 'left' and 'right' inputs. Empty means the 'condition' input must already be boolean.",
				"enum":        []any{"eq", "ne", "gt", "gte", "lt", "lte", "==", "!=", ">", ">=", "<", "<="},
			},
		},
	}
}
