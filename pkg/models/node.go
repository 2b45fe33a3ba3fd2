// Package models defines the core domain models for graph workflow execution.
package models

// NodeType identifies the kind of work a node performs.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeEnd         NodeType = "end"
	NodeTypeAiChat      NodeType = "aichat"
	NodeTypeWiki        NodeType = "wiki"
	NodeTypePlugin      NodeType = "plugin"
	NodeTypeCondition   NodeType = "condition"
	NodeTypeForEach     NodeType = "foreach"
	NodeTypeFork        NodeType = "fork"
	NodeTypeJavaScript  NodeType = "javascript"
	NodeTypeDataProcess NodeType = "dataprocess"
)

// FieldType is the declared type of an input or output field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
)

// ExpressionType selects how a FieldDesign's value is materialized at run time.
type ExpressionType string

const (
	ExpressionTypeFixed         ExpressionType = "fixed"
	ExpressionTypeVariable      ExpressionType = "variable"
	ExpressionTypeJSONPath      ExpressionType = "jsonpath"
	ExpressionTypeInterpolation ExpressionType = "interpolation"
)

// FieldDefine declares the static shape of one field on a node type.
type FieldDefine struct {
	Name string    `json:"name" validate:"required"`
	Type FieldType `json:"type" validate:"required,oneof=string number boolean object array"`
}

// NodeDefine is the static shape of a node type within a graph. Immutable once
// a workflow is published.
type NodeDefine struct {
	NodeKey      string        `json:"node_key" validate:"required"`
	Type         NodeType      `json:"type"     validate:"required"`
	InputFields  []FieldDefine `json:"input_fields"`
	OutputFields []FieldDefine `json:"output_fields"`
}

// FieldDesign is a user-authored rule for producing one field's value.
type FieldDesign struct {
	FieldName      string         `json:"field_name"      validate:"required"`
	ExpressionType ExpressionType `json:"expression_type" validate:"required,oneof=fixed variable jsonpath interpolation"`
	Value          string         `json:"value"`
	Type           FieldType      `json:"type,omitempty"`
}

// NodeDesign is the user configuration of a node instance within one workflow
// definition. Never mutated at run time.
type NodeDesign struct {
	NodeKey      string         `json:"node_key"      validate:"required"`
	Name         string         `json:"name"          validate:"required,min=1"`
	Description  string         `json:"description,omitempty"`
	Type         NodeType       `json:"type"          validate:"required"`
	Config       map[string]any `json:"config,omitempty"`
	InputDesigns []FieldDesign  `json:"input_designs,omitempty"`
	NextNodeKeys []string       `json:"next_node_keys,omitempty"`
}

// Connection is a directed edge between two nodes. Label disambiguates
// multiple out-edges from the same node, e.g. a condition's "true"/"false".
type Connection struct {
	SourceNodeKey string `json:"source_node_key" validate:"required"`
	TargetNodeKey string `json:"target_node_key" validate:"required"`
	Label         string `json:"label,omitempty"`
}
