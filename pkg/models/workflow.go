package models

import "time"

// DefinitionStatus represents the lifecycle state of a workflow definition.
type DefinitionStatus string

const (
	DefinitionStatusDraft     DefinitionStatus = "draft"     // Editable, not executable
	DefinitionStatusPublished DefinitionStatus = "published" // Executable
)

// Graph is a set of node designs plus the connections between them.
type Graph struct {
	Nodes       []*NodeDesign `json:"nodes"       validate:"required,min=1,dive"`
	Connections []*Connection `json:"connections" validate:"dive"`
}

// WorkflowDefinition is one published (or draft) workflow: a top-level graph
// plus the body sub-graphs of its foreach nodes, keyed by the owning node key.
// Loops are expressed only through foreach bodies, never through back-edges in
// the top-level connection list.
type WorkflowDefinition struct {
	ID          string            `json:"id"          validate:"required"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Description string            `json:"description,omitempty"`
	Version     int               `json:"version"`
	Status      DefinitionStatus  `json:"status"`
	Graph       *Graph            `json:"graph"       validate:"required"`
	Subgraphs   map[string]*Graph `json:"subgraphs,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
}

// NodeByKey returns the node design with the given key, if present.
func (g *Graph) NodeByKey(key string) (*NodeDesign, bool) {
	for _, n := range g.Nodes {
		if n.NodeKey == key {
			return n, true
		}
	}

	return nil, false
}

// StartNode returns the graph's single start node.
func (g *Graph) StartNode() (*NodeDesign, bool) {
	for _, n := range g.Nodes {
		if n.Type == NodeTypeStart {
			return n, true
		}
	}

	return nil, false
}

// Outgoing returns the connections leaving the given node, in definition order.
func (g *Graph) Outgoing(key string) []*Connection {
	var out []*Connection

	for _, c := range g.Connections {
		if c.SourceNodeKey == key {
			out = append(out, c)
		}
	}

	return out
}

// Incoming returns the connections arriving at the given node.
func (g *Graph) Incoming(key string) []*Connection {
	var in []*Connection

	for _, c := range g.Connections {
		if c.TargetNodeKey == key {
			in = append(in, c)
		}
	}

	return in
}

// OutgoingByLabel returns the connection leaving the node with the given label.
func (g *Graph) OutgoingByLabel(key, label string) (*Connection, bool) {
	for _, c := range g.Connections {
		if c.SourceNodeKey == key && c.Label == label {
			return c, true
		}
	}

	return nil, false
}

// Body returns the sub-graph owned by the given node key (a foreach body).
func (d *WorkflowDefinition) Body(ownerKey string) (*Graph, bool) {
	g, ok := d.Subgraphs[ownerKey]

	return g, ok
}
