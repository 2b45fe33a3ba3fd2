// Package collab provides local implementations of the collaborator
// contracts. They back the CLI and tests when the real AI, knowledge-base,
// and plugin subsystems are not reachable.
package collab

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flowgraph/flowgraph/pkg/protocol"
)

// EchoCompletion answers every prompt with the prompt itself. Useful for
// exercising workflow wiring without a model behind it.
type EchoCompletion struct {
	// Prefix, when set, is prepended to every answer.
	Prefix string
}

func (e *EchoCompletion) Complete(_ context.Context, req protocol.CompletionRequest) (*protocol.CompletionResult, error) {
	content := req.Prompt
	if e.Prefix != "" {
		content = e.Prefix + content
	}

	return &protocol.CompletionResult{
		Content: content,
		Usage: protocol.TokenUsage{
			PromptTokens:     len(strings.Fields(req.Prompt)),
			CompletionTokens: len(strings.Fields(content)),
		},
	}, nil
}

// StaticWiki searches an in-memory document set with naive substring
// matching. Matches score 1.0; there is no ranking.
type StaticWiki struct {
	mu   sync.RWMutex
	docs map[string][]protocol.WikiMatch
}

func NewStaticWiki() *StaticWiki {
	return &StaticWiki{docs: make(map[string][]protocol.WikiMatch)}
}

// AddDocument registers a document under a wiki ID.
func (w *StaticWiki) AddDocument(wikiID, title, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.docs[wikiID] = append(w.docs[wikiID], protocol.WikiMatch{
		Title:   title,
		Content: content,
		Score:   1.0,
	})
}

func (w *StaticWiki) Search(_ context.Context, wikiID, query string) ([]protocol.WikiMatch, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	matches := make([]protocol.WikiMatch, 0)

	for _, doc := range w.docs[wikiID] {
		if query == "" || strings.Contains(strings.ToLower(doc.Content), strings.ToLower(query)) {
			matches = append(matches, doc)
		}
	}

	return matches, nil
}

// PluginFunc is one callable plugin function.
type PluginFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// FuncInvoker dispatches plugin calls to registered Go functions, keyed by
// plugin ID and function name.
type FuncInvoker struct {
	mu    sync.RWMutex
	funcs map[string]PluginFunc
}

func NewFuncInvoker() *FuncInvoker {
	return &FuncInvoker{funcs: make(map[string]PluginFunc)}
}

// RegisterFunc binds a function under pluginID/name.
func (f *FuncInvoker) RegisterFunc(pluginID, name string, fn PluginFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.funcs[pluginID+"/"+name] = fn
}

func (f *FuncInvoker) Invoke(ctx context.Context, pluginID, function string, args map[string]any) (map[string]any, error) {
	f.mu.RLock()
	fn, ok := f.funcs[pluginID+"/"+function]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("plugin function '%s/%s' not registered", pluginID, function)
	}

	return fn(ctx, args)
}
