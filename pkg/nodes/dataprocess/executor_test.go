package dataprocess

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/flowgraph/flowgraph/pkg/models"
)

func execute(t *testing.T, operations []any, items []any) (map[string]any, error) {
	t.Helper()

	executor := NewExecutor()
	design := &models.NodeDesign{
		NodeKey: "proc",
		Type:    models.NodeTypeDataProcess,
		Config:  map[string]any{"operations": operations},
	}
	rc := models.NewRunContext("inst", "def", nil, nil)

	result, err := executor.Execute(context.Background(), design, map[string]any{"items": items}, rc)
	if err != nil {
		return nil, err
	}

	return result.Output, nil
}

func TestExecute_MapArithmetic(t *testing.T) {
	output, err := execute(t,
		[]any{map[string]any{"type": "map", "expression": "item * 2"}},
		[]any{float64(1), float64(2), float64(3)},
	)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	expected := []any{float64(2), float64(4), float64(6)}
	if !reflect.DeepEqual(output["result"], expected) {
		t.Errorf("expected %v, got %v", expected, output["result"])
	}
}

func TestExecute_MapFieldProjection(t *testing.T) {
	output, err := execute(t,
		[]any{map[string]any{"type": "map", "field": "name"}},
		[]any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		},
	)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	expected := []any{"a", "b"}
	if !reflect.DeepEqual(output["result"], expected) {
		t.Errorf("expected %v, got %v", expected, output["result"])
	}
}

func TestExecute_FilterThenAggregate(t *testing.T) {
	output, err := execute(t,
		[]any{
			map[string]any{"type": "filter", "operator": "gt", "value": float64(1)},
			map[string]any{"type": "aggregate", "function": "sum"},
		},
		[]any{float64(1), float64(2), float64(3)},
	)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if output["result"] != float64(5) {
		t.Errorf("expected 5, got %v", output["result"])
	}
}

func TestExecute_AggregateFunctions(t *testing.T) {
	items := []any{float64(4), float64(1), float64(7)}

	tests := []struct {
		function string
		expected any
	}{
		{"sum", float64(12)},
		{"avg", float64(4)},
		{"min", float64(1)},
		{"max", float64(7)},
		{"count", float64(3)},
		{"first", float64(4)},
		{"last", float64(7)},
	}

	for _, tc := range tests {
		t.Run(tc.function, func(t *testing.T) {
			output, err := execute(t,
				[]any{map[string]any{"type": "aggregate", "function": tc.function}},
				items,
			)
			if err != nil {
				t.Fatalf("execute failed: %v", err)
			}

			if output["result"] != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, output["result"])
			}
		})
	}
}

func TestExecute_MalformedSpec(t *testing.T) {
	_, err := execute(t,
		[]any{map[string]any{"type": "upsert"}},
		[]any{float64(1)},
	)
	if !errors.Is(err, ErrBadTransform) {
		t.Fatalf("expected ErrBadTransform, got %v", err)
	}

	_, err = execute(t, nil, []any{float64(1)})
	if !errors.Is(err, ErrBadTransform) {
		t.Fatalf("expected ErrBadTransform for missing operations, got %v", err)
	}
}

func TestExecute_NonArrayInput(t *testing.T) {
	executor := NewExecutor()
	design := &models.NodeDesign{
		NodeKey: "proc",
		Type:    models.NodeTypeDataProcess,
		Config:  map[string]any{"operations": []any{map[string]any{"type": "aggregate", "function": "count"}}},
	}
	rc := models.NewRunContext("inst", "def", nil, nil)

	_, err := executor.Execute(context.Background(), design, map[string]any{"items": "nope"}, rc)
	if !errors.Is(err, ErrBadTransform) {
		t.Fatalf("expected ErrBadTransform, got %v", err)
	}
}
