// Package wiki provides the knowledge-base search node.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/spf13/cast"
)

// ErrMissingWikiID indicates a wiki node without a configured knowledge base.
var ErrMissingWikiID = errors.New("missing required config 'wiki_id'")

type Executor struct {
	searcher protocol.WikiSearcher
}

func NewExecutor(searcher protocol.WikiSearcher) *Executor {
	return &Executor{searcher: searcher}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeWiki
}

func (e *Executor) Timeout() time.Duration {
	return 30 * time.Second
}

// Execute searches the configured knowledge base. An empty result set is
// success with empty output, never an error.
func (e *Executor) Execute(ctx context.Context, design *models.NodeDesign, input map[string]any, _ *models.RunContext) (*protocol.Result, error) {
	wikiID := cast.ToString(design.Config["wiki_id"])
	if wikiID == "" {
		return nil, ErrMissingWikiID
	}

	query := cast.ToString(input["query"])

	matches, err := e.searcher.Search(ctx, wikiID, query)
	if err != nil {
		return nil, fmt.Errorf("wiki search failed: %w", err)
	}

	items := make([]any, 0, len(matches))
	for _, m := range matches {
		items = append(items, map[string]any{
			"title":   m.Title,
			"content": m.Content,
			"score":   m.Score,
		})
	}

	return &protocol.Result{Output: map[string]any{
		"matches": items,
		"count":   len(items),
	}}, nil
}

// Schema returns the JSON schema for wiki node configuration.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"wiki_id": map[string]any{
				"type":        "string",
				"description": "Knowledge base to search.",
			},
			"timeout_seconds": map[string]any{"type": "number"},
		},
		"required": []any{"wiki_id"},
	}
}
