// Package dataprocess provides the declarative transform node: an ordered
// pipeline of map/filter/aggregate operations over a resolved array.
package dataprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrBadTransform indicates a malformed transform specification.
var ErrBadTransform = errors.New("malformed transform spec")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeDataProcess
}

func (e *Executor) Timeout() time.Duration {
	return 5 * time.Second
}

func (e *Executor) Execute(_ context.Context, design *models.NodeDesign, input map[string]any, rc *models.RunContext) (*protocol.Result, error) {
	raw, ok := input["items"]
	if !ok {
		return nil, fmt.Errorf("missing input 'items': %w", ErrBadTransform)
	}

	items, ok := raw.([]any)
	if !ok {
		// Inside a foreach body the loop element itself is the work item.
		if rc == nil || rc.LoopScope() == nil {
			return nil, fmt.Errorf("input 'items' is %T, want array: %w", raw, ErrBadTransform)
		}

		items = []any{raw}
	}

	operations, err := parseOperations(design.Config)
	if err != nil {
		return nil, err
	}

	current := any(items)

	for _, op := range operations {
		current, err = op.apply(current)
		if err != nil {
			return nil, err
		}
	}

	output := map[string]any{"result": current}
	if arr, ok := current.([]any); ok {
		output["count"] = len(arr)
	}

	return &protocol.Result{Output: output}, nil
}

type operation struct {
	kind      string
	expr      string // map
	field     string // map/filter
	operator  string // filter
	value     any    // filter
	function  string // aggregate
	separator string // aggregate join
}

func parseOperations(config map[string]any) ([]operation, error) {
	raw, ok := config["operations"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("missing 'operations': %w", ErrBadTransform)
	}

	operations := make([]operation, 0, len(raw))

	for i, entry := range raw {
		spec, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("operation %d is %T: %w", i, entry, ErrBadTransform)
		}

		op := operation{
			kind:      cast.ToString(spec["type"]),
			expr:      cast.ToString(spec["expression"]),
			field:     cast.ToString(spec["field"]),
			operator:  cast.ToString(spec["operator"]),
			value:     spec["value"],
			function:  cast.ToString(spec["function"]),
			separator: cast.ToString(spec["separator"]),
		}

		switch op.kind {
		case "map":
			if op.expr == "" && op.field == "" {
				return nil, fmt.Errorf("map operation %d needs 'expression' or 'field': %w", i, ErrBadTransform)
			}
		case "filter":
			if op.operator == "" {
				return nil, fmt.Errorf("filter operation %d needs 'operator': %w", i, ErrBadTransform)
			}
		case "aggregate":
			if op.function == "" {
				return nil, fmt.Errorf("aggregate operation %d needs 'function': %w", i, ErrBadTransform)
			}
		default:
			return nil, fmt.Errorf("operation %d type %q: %w", i, op.kind, ErrBadTransform)
		}

		operations = append(operations, op)
	}

	return operations, nil
}

func (op operation) apply(current any) (any, error) {
	items, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("%s applied to non-array %T: %w", op.kind, current, ErrBadTransform)
	}

	switch op.kind {
	case "map":
		return op.applyMap(items)
	case "filter":
		return op.applyFilter(items)
	case "aggregate":
		return op.applyAggregate(items)
	}

	return nil, fmt.Errorf("operation %q: %w", op.kind, ErrBadTransform)
}

func (op operation) applyMap(items []any) (any, error) {
	out := make([]any, 0, len(items))

	for _, item := range items {
		if op.expr != "" {
			mapped, err := evalItemExpression(op.expr, item)
			if err != nil {
				return nil, err
			}

			out = append(out, mapped)

			continue
		}

		value, err := itemField(item, op.field)
		if err != nil {
			return nil, err
		}

		out = append(out, value)
	}

	return out, nil
}

func (op operation) applyFilter(items []any) (any, error) {
	out := make([]any, 0, len(items))

	for _, item := range items {
		subject := item

		if op.field != "" {
			value, err := itemField(item, op.field)
			if err != nil {
				return nil, err
			}

			subject = value
		}

		keep, err := matches(subject, op.operator, op.value)
		if err != nil {
			return nil, err
		}

		if keep {
			out = append(out, item)
		}
	}

	return out, nil
}

func (op operation) applyAggregate(items []any) (any, error) {
	switch op.function {
	case "count":
		return float64(len(items)), nil
	case "first":
		if len(items) == 0 {
			return nil, nil
		}

		return items[0], nil
	case "last":
		if len(items) == 0 {
			return nil, nil
		}

		return items[len(items)-1], nil
	case "join":
		sep := op.separator
		if sep == "" {
			sep = ","
		}

		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, cast.ToString(item))
		}

		return strings.Join(parts, sep), nil
	case "sum", "avg", "min", "max":
		return numericAggregate(op.function, items)
	default:
		return nil, fmt.Errorf("aggregate function %q: %w", op.function, ErrBadTransform)
	}
}

func numericAggregate(function string, items []any) (any, error) {
	if len(items) == 0 {
		return float64(0), nil
	}

	numbers := make([]float64, 0, len(items))

	for _, item := range items {
		n, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, fmt.Errorf("%s over non-numeric %T: %w", function, item, ErrBadTransform)
		}

		numbers = append(numbers, n)
	}

	result := numbers[0]

	for _, n := range numbers[1:] {
		switch function {
		case "sum", "avg":
			result += n
		case "min":
			if n < result {
				result = n
			}
		case "max":
			if n > result {
				result = n
			}
		}
	}

	if function == "avg" {
		result /= float64(len(numbers))
	}

	return result, nil
}

// evalItemExpression evaluates the declarative per-element form
// "item[.field] <op> <number>" with op one of + - * / %, or a bare
// "item"/"item.field" projection.
func evalItemExpression(expr string, item any) (any, error) {
	parts := strings.Fields(expr)

	switch len(parts) {
	case 1:
		return itemRef(parts[0], item)
	case 3:
		left, err := itemRef(parts[0], item)
		if err != nil {
			return nil, err
		}

		l, err := cast.ToFloat64E(left)
		if err != nil {
			return nil, fmt.Errorf("expression %q over non-numeric %T: %w", expr, left, ErrBadTransform)
		}

		r, err := cast.ToFloat64E(parts[2])
		if err != nil {
			return nil, fmt.Errorf("expression %q operand %q: %w", expr, parts[2], ErrBadTransform)
		}

		return arithmetic(l, parts[1], r, expr)
	default:
		return nil, fmt.Errorf("expression %q: %w", expr, ErrBadTransform)
	}
}

func arithmetic(l float64, operator string, r float64, expr string) (any, error) {
	switch operator {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, fmt.Errorf("expression %q divides by zero: %w", expr, ErrBadTransform)
		}

		return l / r, nil
	case "%":
		if r == 0 {
			return nil, fmt.Errorf("expression %q divides by zero: %w", expr, ErrBadTransform)
		}

		return float64(int64(l) % int64(r)), nil
	default:
		return nil, fmt.Errorf("expression %q operator %q: %w", expr, operator, ErrBadTransform)
	}
}

func itemRef(ref string, item any) (any, error) {
	if ref == "item" {
		return item, nil
	}

	field, ok := strings.CutPrefix(ref, "item.")
	if !ok {
		return nil, fmt.Errorf("reference %q must start with 'item': %w", ref, ErrBadTransform)
	}

	return itemField(item, field)
}

func itemField(item any, field string) (any, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q of non-object %T: %w", field, item, ErrBadTransform)
	}

	value, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("field %q not present: %w", field, ErrBadTransform)
	}

	return value, nil
}

func matches(subject any, operator string, expected any) (bool, error) {
	switch operator {
	case "eq":
		return cast.ToString(subject) == cast.ToString(expected), nil
	case "ne":
		return cast.ToString(subject) != cast.ToString(expected), nil
	case "contains":
		return strings.Contains(cast.ToString(subject), cast.ToString(expected)), nil
	}

	s, err := cast.ToFloat64E(subject)
	if err != nil {
		return false, fmt.Errorf("filter subject %T: %w", subject, ErrBadTransform)
	}

	e, err := cast.ToFloat64E(expected)
	if err != nil {
		return false, fmt.Errorf("filter value %T: %w", expected, ErrBadTransform)
	}

	switch operator {
	case "gt":
		return s > e, nil
	case "gte":
		return s >= e, nil
	case "lt":
		return s < e, nil
	case "lte":
		return s <= e, nil
	default:
		return false, fmt.Errorf("filter operator %q: %w", operator, ErrBadTransform)
	}
}

// Schema returns the JSON schema for dataprocess node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operations": map[string]any{
				"type":        "array",
				"description": "Ordered map/filter/aggregate operations applied to the 'items' input.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":       map[string]any{"type": "string", "enum": []any{"map", "filter", "aggregate"}},
						"expression": map[string]any{"type": "string"},
						"field":      map[string]any{"type": "string"},
						"operator":   map[string]any{"type": "string"},
						"value":      map[string]any{},
						"function":   map[string]any{"type": "string"},
						"separator":  map[string]any{"type": "string"},
					},
					"required": []any{"type"},
				},
			},
		},
		"required": []any{"operations"},
	}
}
