// Package registry holds the node executor registry and per-type config
// schema validation.
package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cast"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	executors map[models.NodeType]protocol.NodeExecutor
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		executors: make(map[models.NodeType]protocol.NodeExecutor),
	}
}

func (r *Registry) Register(executor protocol.NodeExecutor) {
	r.executors[executor.Type()] = executor
	r.logger.Debug("registered node executor", "type", executor.Type())
}

func (r *Registry) Executor(nodeType models.NodeType) (protocol.NodeExecutor, error) {
	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return executor, nil
}

func (r *Registry) RegisteredTypes() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	return types
}

// TimeoutFor resolves a node's execution budget: the executor's per-type
// default, overridable by a positive timeout_seconds in the node config.
func (r *Registry) TimeoutFor(design *models.NodeDesign) (time.Duration, error) {
	executor, err := r.Executor(design.Type)
	if err != nil {
		return 0, err
	}

	if raw, ok := design.Config["timeout_seconds"]; ok {
		seconds, err := cast.ToFloat64E(raw)
		if err != nil || seconds <= 0 {
			return 0, fmt.Errorf("node '%s': invalid timeout_seconds %v", design.NodeKey, raw)
		}

		return time.Duration(seconds * float64(time.Second)), nil
	}

	return executor.Timeout(), nil
}
