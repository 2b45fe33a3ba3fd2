package registry

import (
	"github.com/flowgraph/flowgraph/pkg/nodes/aichat"
	"github.com/flowgraph/flowgraph/pkg/nodes/condition"
	"github.com/flowgraph/flowgraph/pkg/nodes/dataprocess"
	"github.com/flowgraph/flowgraph/pkg/nodes/end"
	"github.com/flowgraph/flowgraph/pkg/nodes/foreach"
	"github.com/flowgraph/flowgraph/pkg/nodes/fork"
	"github.com/flowgraph/flowgraph/pkg/nodes/javascript"
	"github.com/flowgraph/flowgraph/pkg/nodes/plugin"
	"github.com/flowgraph/flowgraph/pkg/nodes/start"
	"github.com/flowgraph/flowgraph/pkg/nodes/wiki"
	"github.com/flowgraph/flowgraph/pkg/protocol"
)

// Collaborators are the external subsystems the delegating node types need.
type Collaborators struct {
	AI     protocol.AICompletion
	Wiki   protocol.WikiSearcher
	Plugin protocol.PluginInvoker
}

// RegisterDefaults registers all built-in node executors with the registry.
func (r *Registry) RegisterDefaults(collab Collaborators) {
	r.Register(start.NewExecutor())
	r.Register(end.NewExecutor())
	r.Register(aichat.NewExecutor(collab.AI))
	r.Register(wiki.NewExecutor(collab.Wiki))
	r.Register(plugin.NewExecutor(collab.Plugin))
	r.Register(condition.NewExecutor())
	r.Register(foreach.NewExecutor())
	r.Register(fork.NewExecutor())
	r.Register(javascript.NewExecutor())
	r.Register(dataprocess.NewExecutor())
}
