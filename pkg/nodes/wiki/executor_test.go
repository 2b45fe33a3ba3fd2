package wiki

import (
	"context"
	"errors"
	"testing"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
)

type stubSearcher struct {
	matches []protocol.WikiMatch
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _, _ string) ([]protocol.WikiMatch, error) {
	return s.matches, s.err
}

func TestExecute_EmptyResultIsSuccess(t *testing.T) {
	executor := NewExecutor(&stubSearcher{})
	design := &models.NodeDesign{
		NodeKey: "kb",
		Type:    models.NodeTypeWiki,
		Config:  map[string]any{"wiki_id": "w-1"},
	}
	rc := models.NewRunContext("inst", "def", nil, nil)

	result, err := executor.Execute(context.Background(), design, map[string]any{"query": "missing"}, rc)
	if err != nil {
		t.Fatalf("empty result must succeed, got %v", err)
	}

	if result.Output["count"] != 0 {
		t.Errorf("expected count 0, got %v", result.Output["count"])
	}

	matches, ok := result.Output["matches"].([]any)
	if !ok || len(matches) != 0 {
		t.Errorf("expected empty matches array, got %v", result.Output["matches"])
	}
}

func TestExecute_MissingWikiID(t *testing.T) {
	executor := NewExecutor(&stubSearcher{})
	design := &models.NodeDesign{NodeKey: "kb", Type: models.NodeTypeWiki}
	rc := models.NewRunContext("inst", "def", nil, nil)

	_, err := executor.Execute(context.Background(), design, map[string]any{"query": "x"}, rc)
	if !errors.Is(err, ErrMissingWikiID) {
		t.Fatalf("expected ErrMissingWikiID, got %v", err)
	}
}

func TestExecute_MatchesProjected(t *testing.T) {
	executor := NewExecutor(&stubSearcher{matches: []protocol.WikiMatch{
		{Title: "Doc", Content: "body", Score: 0.8},
	}})
	design := &models.NodeDesign{
		NodeKey: "kb",
		Type:    models.NodeTypeWiki,
		Config:  map[string]any{"wiki_id": "w-1"},
	}
	rc := models.NewRunContext("inst", "def", nil, nil)

	result, err := executor.Execute(context.Background(), design, map[string]any{"query": "doc"}, rc)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	matches := result.Output["matches"].([]any)
	first := matches[0].(map[string]any)

	if first["title"] != "Doc" || first["score"] != 0.8 {
		t.Errorf("unexpected match projection: %v", first)
	}
}
