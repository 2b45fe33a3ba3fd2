package aichat

import (
	"context"
	"errors"
	"testing"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
)

type stubCompletion struct {
	lastRequest protocol.CompletionRequest
	result      *protocol.CompletionResult
	err         error
}

func (s *stubCompletion) Complete(_ context.Context, req protocol.CompletionRequest) (*protocol.CompletionResult, error) {
	s.lastRequest = req

	if s.err != nil {
		return nil, s.err
	}

	return s.result, nil
}

func TestExecute_DelegatesResolvedPrompt(t *testing.T) {
	stub := &stubCompletion{result: &protocol.CompletionResult{
		Content: "hello back",
		Usage:   protocol.TokenUsage{PromptTokens: 3, CompletionTokens: 2},
	}}
	executor := NewExecutor(stub)

	design := &models.NodeDesign{
		NodeKey: "chat",
		Type:    models.NodeTypeAiChat,
		Config:  map[string]any{"model_id": "gpt-test"},
	}
	rc := models.NewRunContext("inst", "def", nil, nil)

	result, err := executor.Execute(context.Background(), design, map[string]any{"prompt": "echo hi"}, rc)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if stub.lastRequest.Prompt != "echo hi" {
		t.Errorf("expected resolved prompt to reach collaborator, got %q", stub.lastRequest.Prompt)
	}

	if stub.lastRequest.ModelID != "gpt-test" {
		t.Errorf("expected config model fallback, got %q", stub.lastRequest.ModelID)
	}

	if result.Output["content"] != "hello back" {
		t.Errorf("expected content in output, got %v", result.Output["content"])
	}
}

func TestExecute_MissingPrompt(t *testing.T) {
	executor := NewExecutor(&stubCompletion{})
	design := &models.NodeDesign{NodeKey: "chat", Type: models.NodeTypeAiChat}
	rc := models.NewRunContext("inst", "def", nil, nil)

	_, err := executor.Execute(context.Background(), design, map[string]any{}, rc)
	if !errors.Is(err, ErrMissingPrompt) {
		t.Fatalf("expected ErrMissingPrompt, got %v", err)
	}
}

func TestExecute_UpstreamFailureWrapped(t *testing.T) {
	upstream := errors.New("quota exceeded")
	executor := NewExecutor(&stubCompletion{err: upstream})
	design := &models.NodeDesign{NodeKey: "chat", Type: models.NodeTypeAiChat}
	rc := models.NewRunContext("inst", "def", nil, nil)

	_, err := executor.Execute(context.Background(), design, map[string]any{"prompt": "x"}, rc)
	if !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
}
