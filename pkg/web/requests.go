package web

import (
	"github.com/flowgraph/flowgraph/pkg/models"
)

// CreateWorkflowRequest is the payload for creating a workflow definition.
// Definitions are created as drafts; publishing is a separate operation.
type CreateWorkflowRequest struct {
	Name        string                   `json:"name"        validate:"required,min=1,max=255"`
	Description string                   `json:"description" validate:"max=2000"`
	Owner       string                   `json:"owner"       validate:"max=255"`
	Graph       *models.Graph            `json:"graph"       validate:"required"`
	Subgraphs   map[string]*models.Graph `json:"subgraphs"`
}

// UpdateWorkflowRequest is the payload for partial definition updates. Nil
// fields are left unchanged.
type UpdateWorkflowRequest struct {
	Name        *string                  `json:"name"        validate:"omitempty,min=1,max=255"`
	Description *string                  `json:"description" validate:"omitempty,max=2000"`
	Owner       *string                  `json:"owner"       validate:"omitempty,max=255"`
	Graph       *models.Graph            `json:"graph"`
	Subgraphs   map[string]*models.Graph `json:"subgraphs"`
}

// ExecuteWorkflowRequest carries the runtime parameters for one execution.
// TimeoutSeconds bounds the whole run; zero means no budget.
type ExecuteWorkflowRequest struct {
	Parameters     map[string]any `json:"parameters"`
	TimeoutSeconds float64        `json:"timeout_seconds" validate:"omitempty,gt=0"`
}
