// Package aichat provides the node that delegates to the AI-completion
// collaborator with a resolved prompt, model, and settings.
package aichat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrMissingPrompt indicates an aichat node dispatched without a prompt input.
var ErrMissingPrompt = errors.New("missing required input 'prompt'")

type Executor struct {
	completion protocol.AICompletion
}

func NewExecutor(completion protocol.AICompletion) *Executor {
	return &Executor{completion: completion}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeAiChat
}

// Timeout tolerates slow upstream models; the scheduler applies it per dispatch.
func (e *Executor) Timeout() time.Duration {
	return 120 * time.Second
}

func (e *Executor) Execute(ctx context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	prompt := cast.ToString(input["prompt"])
	if prompt == "" {
		return nil, ErrMissingPrompt
	}

	modelID := cast.ToString(input["model"])
	if modelID == "" {
		modelID = cast.ToString(design.Config["model_id"])
	}

	settings, _ := design.Config["settings"].(map[string]any)

	result, err := e.completion.Complete(ctx, protocol.CompletionRequest{
		Prompt:   prompt,
		ModelID:  modelID,
		Settings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("ai completion failed: %w", err)
	}

	return &protocol.Result{Output: map[string]any{
		"content": result.Content,
		"usage": map[string]any{
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
		},
	}}, nil
}

// Schema returns the JSON schema for aichat node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model_id": map[string]any{
				"type":        "string",
				"description": "Model used when the input fields do not carry one.",
			},
			"settings": map[string]any{
				"type":        "object",
				"description": "Provider settings passed through to the completion call.",
			},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"description": "Override for the default execution budget.",
			},
		},
	}
}
