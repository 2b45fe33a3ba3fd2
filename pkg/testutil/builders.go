// Package testutil provides test data builders for workflow definitions.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// CreateTestDefinition creates a published definition with default values
// that can be overridden. Without overrides the graph is a bare
// start -> end chain.
func CreateTestDefinition(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	now := time.Now().UTC()
	def := &models.WorkflowDefinition{
		ID:      uuid.New().String(),
		Name:    "Test Workflow",
		Version: 1,
		Status:  models.DefinitionStatusPublished,
		Graph: &models.Graph{
			Nodes: []*models.NodeDesign{
				CreateTestNode("start", models.NodeTypeStart),
				CreateTestNode("end", models.NodeTypeEnd),
			},
			Connections: []*models.Connection{
				Connect("start", "end"),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(def)
	}

	return def
}

// WithGraph replaces the definition's top-level graph.
func WithGraph(nodes []*models.NodeDesign, connections []*models.Connection) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.Graph = &models.Graph{Nodes: nodes, Connections: connections}
	}
}

// WithBody attaches a foreach body sub-graph under the owning node key.
func WithBody(ownerKey string, nodes []*models.NodeDesign, connections []*models.Connection) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		if d.Subgraphs == nil {
			d.Subgraphs = make(map[string]*models.Graph)
		}

		d.Subgraphs[ownerKey] = &models.Graph{Nodes: nodes, Connections: connections}
	}
}

// WithStatus sets the definition lifecycle status.
func WithStatus(status models.DefinitionStatus) func(*models.WorkflowDefinition) {
	return func(d *models.WorkflowDefinition) {
		d.Status = status
	}
}

// CreateTestNode creates a node design of the given type.
func CreateTestNode(key string, nodeType models.NodeType, overrides ...func(*models.NodeDesign)) *models.NodeDesign {
	node := &models.NodeDesign{
		NodeKey: key,
		Name:    key,
		Type:    nodeType,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.NodeDesign) {
	return func(n *models.NodeDesign) {
		n.Config = config
	}
}

// WithInputs sets the node's input field designs.
func WithInputs(designs ...models.FieldDesign) func(*models.NodeDesign) {
	return func(n *models.NodeDesign) {
		n.InputDesigns = designs
	}
}

// Connect builds an unlabeled connection.
func Connect(source, target string) *models.Connection {
	return &models.Connection{SourceNodeKey: source, TargetNodeKey: target}
}

// ConnectLabeled builds a labeled connection, e.g. a condition branch.
func ConnectLabeled(source, target, label string) *models.Connection {
	return &models.Connection{SourceNodeKey: source, TargetNodeKey: target, Label: label}
}

// FixedField builds a fixed-value field design.
func FixedField(name, value string, fieldType models.FieldType) models.FieldDesign {
	return models.FieldDesign{
		FieldName:      name,
		ExpressionType: models.ExpressionTypeFixed,
		Value:          value,
		Type:           fieldType,
	}
}

// VariableField builds a variable-reference field design.
func VariableField(name, path string) models.FieldDesign {
	return models.FieldDesign{
		FieldName:      name,
		ExpressionType: models.ExpressionTypeVariable,
		Value:          path,
	}
}

// InterpolationField builds a template field design.
func InterpolationField(name, template string) models.FieldDesign {
	return models.FieldDesign{
		FieldName:      name,
		ExpressionType: models.ExpressionTypeInterpolation,
		Value:          template,
	}
}
