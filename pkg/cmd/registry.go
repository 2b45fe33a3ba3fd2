// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/flowgraph/flowgraph/pkg/collab"
	"github.com/flowgraph/flowgraph/pkg/registry"
)

// NewRegistry builds a registry with every built-in node executor. The AI,
// wiki, and plugin collaborators default to the local stubs; deployments with
// real subsystems pass their own.
func NewRegistry(logger *slog.Logger, collaborators *registry.Collaborators) *registry.Registry {
	if collaborators == nil {
		collaborators = &registry.Collaborators{
			AI:     &collab.EchoCompletion{},
			Wiki:   collab.NewStaticWiki(),
			Plugin: collab.NewFuncInvoker(),
		}
	}

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(*collaborators)

	return reg
}
