package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/flowgraph/flowgraph/pkg/models"
)

func TestExecute_DirectBoolean(t *testing.T) {
	executor := NewExecutor()
	design := &models.NodeDesign{NodeKey: "cond", Type: models.NodeTypeCondition}
	rc := models.NewRunContext("inst", "def", nil, nil)

	result, err := executor.Execute(context.Background(), design, map[string]any{"condition": true}, rc)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if result.Output["result"] != true {
		t.Errorf("expected true result, got %v", result.Output["result"])
	}

	if len(result.NextOverride) != 1 || result.NextOverride[0] != "true" {
		t.Errorf("expected next override [true], got %v", result.NextOverride)
	}
}

func TestExecute_NonBooleanFails(t *testing.T) {
	executor := NewExecutor()
	design := &models.NodeDesign{NodeKey: "cond", Type: models.NodeTypeCondition}
	rc := models.NewRunContext("inst", "def", nil, nil)

	_, err := executor.Execute(context.Background(), design, map[string]any{"condition": "yes"}, rc)
	if !errors.Is(err, ErrNotBoolean) {
		t.Fatalf("expected ErrNotBoolean, got %v", err)
	}
}

func TestExecute_Comparison(t *testing.T) {
	executor := NewExecutor()
	rc := models.NewRunContext("inst", "def", nil, nil)

	tests := []struct {
		name     string
		operator string
		left     any
		right    any
		expected bool
	}{
		{"greater than true", "gt", float64(5), float64(0), true},
		{"greater than false", "gt", float64(-1), float64(0), false},
		{"equality on strings", "eq", "a", "a", true},
		{"lte boundary", "lte", float64(3), float64(3), true},
		{"symbol operator", ">", float64(2), float64(1), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			design := &models.NodeDesign{
				NodeKey: "cond",
				Type:    models.NodeTypeCondition,
				Config:  map[string]any{"operator": tc.operator},
			}

			result, err := executor.Execute(context.Background(), design, map[string]any{
				"left":  tc.left,
				"right": tc.right,
			}, rc)
			if err != nil {
				t.Fatalf("execute failed: %v", err)
			}

			if result.Output["result"] != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, result.Output["result"])
			}

			want := "false"
			if tc.expected {
				want = "true"
			}

			if result.NextOverride[0] != want {
				t.Errorf("expected branch %s, got %s", want, result.NextOverride[0])
			}
		})
	}
}

func TestExecute_BadOperator(t *testing.T) {
	executor := NewExecutor()
	rc := models.NewRunContext("inst", "def", nil, nil)
	design := &models.NodeDesign{
		NodeKey: "cond",
		Type:    models.NodeTypeCondition,
		Config:  map[string]any{"operator": "~="},
	}

	_, err := executor.Execute(context.Background(), design, map[string]any{
		"left":  float64(1),
		"right": float64(2),
	}, rc)
	if !errors.Is(err, ErrBadOperator) {
		t.Fatalf("expected ErrBadOperator, got %v", err)
	}
}
