package protocol

import (
	"context"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// CompletionRequest is the contract for the AI-completion collaborator.
type CompletionRequest struct {
	Prompt   string         `json:"prompt"`
	ModelID  string         `json:"model_id"`
	Settings map[string]any `json:"settings,omitempty"`
}

// TokenUsage reports the upstream model's token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionResult is the AI collaborator's response.
type CompletionResult struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// AICompletion reaches the AI chat subsystem. Implemented elsewhere.
type AICompletion interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// WikiMatch is one knowledge-base search hit.
type WikiMatch struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// WikiSearcher reaches the knowledge-base subsystem. An empty result is
// success, not an error.
type WikiSearcher interface {
	Search(ctx context.Context, wikiID, query string) ([]WikiMatch, error)
}

// PluginInvoker reaches the plugin subsystem (MCP, OpenAPI, or native tools).
type PluginInvoker interface {
	Invoke(ctx context.Context, pluginID, function string, args map[string]any) (map[string]any, error)
}

// DefinitionStore is the read-only lookup for published workflow definitions.
type DefinitionStore interface {
	Definition(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error)
}
